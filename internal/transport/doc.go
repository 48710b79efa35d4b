// Package transport moves command packets between callers and the dispatcher.
//
// Packets arrive on an inbound queue from the message bus or the HTTP API.
// A single consumer dispatches them one at a time and places each response
// on the outbound queue, from where it is routed back to its caller.
package transport
