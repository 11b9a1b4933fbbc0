// Package server assembles the portal: configuration, logging, metrics and
// tracing, the providers, and the gin router that exposes them.
//
// Route map:
//
//	GET  /health                  liveness
//	GET  /metrics                 Prometheus exposition
//	     /api/*                   rate limited, then X-API-Key gated
//	ANY  /node-red/*              reverse proxy to the flow editor
//	GET  /ws/terminal             terminal socket
//	GET  /static/*, /assets/*     front-end files
//	GET  anything else            SPA shell
package server
