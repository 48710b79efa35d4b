package api

import (
	"context"
	"net/http"

	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/device"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
	"github.com/jupitervolta/ds1054z/internal/transport"
)

// RequestPort submits a packet to the single dispatch consumer and waits for the response.
type RequestPort interface {
	Request(ctx context.Context, p transport.Packet, user string) (transport.Packet, error)
}

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	Recent(n int) []telemetry.Event
	ClientCount() int
}

// StatusPort reports the capture loop state.
type StatusPort interface {
	Snapshot() map[string]interface{}
}

// InstrumentPort reports the instrument identity.
type InstrumentPort interface {
	Info() device.Info
}

// Compile-time assertions for port conformance
var _ RequestPort = (*transport.Queue)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
var _ StatusPort = (*capture.Orchestrator)(nil)
var _ InstrumentPort = (*device.Handle)(nil)
