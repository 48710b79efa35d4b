package scope

import (
	"context"
	"strconv"
	"strings"
)

// TriggerStatus is the raw trigger state reported by the instrument.
type TriggerStatus string

// Trigger states reported by :TRIGger:STATus?.
const (
	StatusTriggered TriggerStatus = "TD"
	StatusWait      TriggerStatus = "WAIT"
	StatusRun       TriggerStatus = "RUN"
	StatusAuto      TriggerStatus = "AUTO"
	StatusStop      TriggerStatus = "STOP"
)

// ParseTriggerStatus normalizes a raw status reply. Unknown values are kept verbatim.
func ParseTriggerStatus(raw string) TriggerStatus {
	return TriggerStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsTriggered reports whether a single-shot acquisition has fired.
// STOP counts because the scope halts right after a single capture completes.
func (s TriggerStatus) IsTriggered() bool {
	switch s {
	case StatusTriggered, StatusAuto, StatusStop:
		return true
	default:
		return false
	}
}

// Known reports whether the status is one of the documented values.
func (s TriggerStatus) Known() bool {
	switch s {
	case StatusTriggered, StatusWait, StatusRun, StatusAuto, StatusStop:
		return true
	default:
		return false
	}
}

// Waveform read modes accepted by :WAVeform:MODE.
const (
	ModeNormal  = "NORMal"
	ModeRaw     = "RAW"
	ModeMaximum = "MAXimum"
)

// CanonicalMode maps any accepted spelling of a waveform mode (NORM, normal,
// MAX, ...) to its constant.
func CanonicalMode(mode string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "NORM", "NORMAL":
		return ModeNormal, true
	case "RAW":
		return ModeRaw, true
	case "MAX", "MAXIMUM":
		return ModeMaximum, true
	default:
		return "", false
	}
}

// Device defines the southbound contract every oscilloscope driver implements.
// Implementations are not required to be safe for concurrent use; callers
// serialize access through device.Handle.
type Device interface {
	// Write sends a command that produces no reply.
	Write(ctx context.Context, cmd string) error

	// Query sends a command and returns its single-line reply.
	Query(ctx context.Context, query string) (string, error)

	// Single arms a single-shot acquisition.
	Single(ctx context.Context) error

	// ForceTrigger generates a trigger regardless of the trigger condition.
	ForceTrigger(ctx context.Context) error

	// TriggerStatus reads the current trigger state. Never cached.
	TriggerStatus(ctx context.Context) (TriggerStatus, error)

	// GetAttr reads a named attribute from the attribute table.
	GetAttr(ctx context.Context, name string) (any, error)

	// SetAttr writes a named attribute.
	SetAttr(ctx context.Context, name string, value any) error

	// HasAttr reports whether the attribute exists. It performs no I/O.
	HasAttr(name string) bool

	// DisplayedChannels lists the enabled analog channels, e.g. ["CHAN1", "CHAN2"].
	DisplayedChannels(ctx context.Context) ([]string, error)

	// WaveformSamples reads one channel's samples in physical units.
	WaveformSamples(ctx context.Context, channel, mode string) ([]float64, error)

	// TimeAxis returns the sample times matching WaveformSamples for the mode.
	TimeAxis(ctx context.Context, mode string) ([]float64, error)

	// DisplayData returns the screen as encoded image bytes (PNG or BMP).
	DisplayData(ctx context.Context) ([]byte, error)

	// Close releases the connection.
	Close() error
}

// Base provides common identity fields for driver implementations.
type Base struct {
	// Model identifies the instrument model
	Model string

	// Address is the network location of the instrument
	Address string

	// Status indicates the connection status
	Status string
}

// GetModel returns the instrument model.
func (b *Base) GetModel() string {
	return b.Model
}

// GetAddress returns the instrument address.
func (b *Base) GetAddress() string {
	return b.Address
}

// GetStatus returns the connection status.
func (b *Base) GetStatus() string {
	return b.Status
}

// SetStatus updates the connection status.
func (b *Base) SetStatus(status string) {
	b.Status = status
}

// ChannelName returns the canonical name for an analog channel number.
func ChannelName(n int) string {
	return "CHAN" + strconv.Itoa(n)
}
