package command

import (
	"context"
	"time"

	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/device"
	"github.com/jupitervolta/ds1054z/internal/scope"
)

//go:generate mockgen -destination=mock_ports.go -package=command github.com/jupitervolta/ds1054z/internal/command AuditLogger

// Instrument is the serialized device the dispatcher talks to.
type Instrument interface {
	scope.Device

	// Do holds exclusive access for a multi-command sequence.
	Do(fn func(scope.Device) error) error
}

// CaptureRunner is the part of the capture loop exposed as operations.
type CaptureRunner interface {
	Setup(ctx context.Context) error
	Arm(ctx context.Context) error
	RunCycles(ctx context.Context, maxCycles int) (capture.Summary, error)
	HasTriggered(ctx context.Context) (bool, error)
}

// AuditLogger writes one record per dispatched operation.
type AuditLogger interface {
	LogAction(ctx context.Context, action, instrument, code string, latency time.Duration)
}

// identified is implemented by device.Handle.
type identified interface {
	Info() device.Info
}

// Compile-time assertions
var (
	_ Instrument    = (*device.Handle)(nil)
	_ CaptureRunner = (*capture.Orchestrator)(nil)
	_ identified    = (*device.Handle)(nil)
)
