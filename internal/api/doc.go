// Package api implements the HTTP surface of the oscilloscope server.
//
//	GET  /api/v1/health     capture state and instrument identity (no auth)
//	POST /api/v1/command    one command packet through the dispatch queue
//	GET  /api/v1/telemetry  Server-Sent Events from the telemetry hub
package api
