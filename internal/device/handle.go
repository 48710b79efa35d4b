// Package device serializes access to the single oscilloscope connection.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// Info describes the instrument behind a handle.
type Info struct {
	Model    string    `json:"model"`
	Address  string    `json:"address"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// identity is implemented by drivers that embed scope.Base.
type identity interface {
	GetModel() string
	GetAddress() string
	GetStatus() string
}

// Handle owns one scope.Device. Every call holds the mutex for its full
// duration, so the capture loop and the command dispatcher never interleave
// instrument I/O. Handle itself satisfies scope.Device.
type Handle struct {
	mu       sync.Mutex
	dev      scope.Device
	lastSeen time.Time
}

// Compile-time assertion that Handle implements scope.Device
var _ scope.Device = (*Handle)(nil)

// NewHandle wraps dev.
func NewHandle(dev scope.Device) *Handle {
	return &Handle{dev: dev}
}

// Do runs fn with exclusive access to the device, for multi-command sequences.
func (h *Handle) Do(fn func(scope.Device) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen(fn(h.dev))
}

// seen records the time of the last successful exchange. Caller holds mu.
func (h *Handle) seen(err error) error {
	if err == nil {
		h.lastSeen = time.Now()
	}
	return err
}

// Info reports the driver identity and the time of the last successful call.
func (h *Handle) Info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	info := Info{Status: "unknown", LastSeen: h.lastSeen}
	if id, ok := h.dev.(identity); ok {
		info.Model = id.GetModel()
		info.Address = id.GetAddress()
		info.Status = id.GetStatus()
	}
	return info
}

func (h *Handle) Write(ctx context.Context, cmd string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen(h.dev.Write(ctx, cmd))
}

func (h *Handle) Query(ctx context.Context, query string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reply, err := h.dev.Query(ctx, query)
	return reply, h.seen(err)
}

func (h *Handle) Single(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen(h.dev.Single(ctx))
}

func (h *Handle) ForceTrigger(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen(h.dev.ForceTrigger(ctx))
}

func (h *Handle) TriggerStatus(ctx context.Context) (scope.TriggerStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	status, err := h.dev.TriggerStatus(ctx)
	return status, h.seen(err)
}

func (h *Handle) GetAttr(ctx context.Context, name string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, err := h.dev.GetAttr(ctx, name)
	return value, h.seen(err)
}

func (h *Handle) SetAttr(ctx context.Context, name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen(h.dev.SetAttr(ctx, name, value))
}

// HasAttr performs no I/O but still goes through the lock for consistency.
func (h *Handle) HasAttr(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.HasAttr(name)
}

func (h *Handle) DisplayedChannels(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	channels, err := h.dev.DisplayedChannels(ctx)
	return channels, h.seen(err)
}

func (h *Handle) WaveformSamples(ctx context.Context, channel, mode string) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	samples, err := h.dev.WaveformSamples(ctx, channel, mode)
	return samples, h.seen(err)
}

func (h *Handle) TimeAxis(ctx context.Context, mode string) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	times, err := h.dev.TimeAxis(ctx, mode)
	return times, h.seen(err)
}

func (h *Handle) DisplayData(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := h.dev.DisplayData(ctx)
	return data, h.seen(err)
}

// Close closes the underlying device.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Close()
}
