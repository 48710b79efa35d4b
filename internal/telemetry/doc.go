// Package telemetry fans capture and command events out to Server-Sent Events
// clients and to pluggable sinks such as the message bus.
//
// Events carry a monotonic ID. A bounded ring buffer lets a reconnecting SSE
// client resume with Last-Event-ID. A heartbeat keeps idle streams alive while
// at least one client is connected.
package telemetry
