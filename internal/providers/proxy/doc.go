// Package proxy exposes the local Node-RED editor under a path prefix of the
// portal.
//
// Requests under the prefix are forwarded with the prefix removed, the Host
// rewritten to the target, and X-Forwarded-Host / X-Forwarded-Proto set from
// the incoming request. Websocket upgrades pass through. When the editor is
// unreachable the client gets a 502.
package proxy
