package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupitervolta/ds1054z/internal/scope"
	"github.com/jupitervolta/ds1054z/internal/scope/fake"
	"github.com/jupitervolta/ds1054z/internal/scopetest"
)

// overlapDevice fails the test if two calls are ever in flight together.
type overlapDevice struct {
	*fake.FakeDevice
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (o *overlapDevice) enter() func() {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	time.Sleep(time.Millisecond)
	return func() { o.inFlight.Add(-1) }
}

func (o *overlapDevice) TriggerStatus(ctx context.Context) (scope.TriggerStatus, error) {
	defer o.enter()()
	return o.FakeDevice.TriggerStatus(ctx)
}

func (o *overlapDevice) Write(ctx context.Context, cmd string) error {
	defer o.enter()()
	return o.FakeDevice.Write(ctx, cmd)
}

func TestHandleConformance(t *testing.T) {
	scopetest.RunConformance(t, func() scope.Device { return NewHandle(fake.NewFakeDevice()) }, scopetest.Expectations{
		Name:              "handle(fake)",
		DisplayedChannels: []string{"CHAN1", "CHAN2"},
		MinPoints:         8,
	})
}

func TestHandleSerializesCalls(t *testing.T) {
	dev := &overlapDevice{FakeDevice: fake.NewFakeDevice()}
	h := NewHandle(dev)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.TriggerStatus(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = h.Write(ctx, ":RUN")
		}()
	}
	wg.Wait()

	assert.Zero(t, dev.overlaps.Load(), "device calls overlapped")
	assert.Len(t, dev.Writes(), 8)
}

func TestHandleDoHoldsLockAcrossSequence(t *testing.T) {
	dev := &overlapDevice{FakeDevice: fake.NewFakeDevice()}
	h := NewHandle(dev)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.Do(func(d scope.Device) error {
			close(started)
			<-release
			return d.Write(ctx, ":SINGle")
		})
	}()
	<-started

	statusDone := make(chan struct{})
	go func() {
		_, _ = h.TriggerStatus(ctx)
		close(statusDone)
	}()

	select {
	case <-statusDone:
		t.Fatal("TriggerStatus ran while Do held the handle")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	<-statusDone
	assert.Equal(t, []string{":SINGle"}, dev.Writes())
}

func TestHandleInfo(t *testing.T) {
	dev := fake.NewFakeDevice()
	h := NewHandle(dev)

	info := h.Info()
	assert.Equal(t, "Fake-DS1054Z", info.Model)
	assert.Equal(t, "online", info.Status)
	assert.True(t, info.LastSeen.IsZero())

	_, err := h.TriggerStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Info().LastSeen.IsZero())

	dev.SetErrorSimulation("TriggerStatus", errors.New("boom"))
	before := h.Info().LastSeen
	_, err = h.TriggerStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, h.Info().LastSeen)
}
