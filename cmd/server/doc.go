// Package main is the entry point for the AutomataNexus remote portal.
//
// The portal runs on the building-management controller and gives remote
// operators one place to watch the device, edit Node-RED flows, and open
// a shell.
//
// Architecture:
//
//	Browser → Portal → Node-RED (/node-red/*)
//	               → PTY shell (/ws/terminal)
//	               → OpenWeather, Resend (/api/*)
//
// Configuration:
//   - .env file in the working directory, when present
//   - YAML file named by PORTAL_CONFIG_FILE
//   - Environment variables (override the file)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -host 0.0.0.0
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, terminal sessions are killed
package main
