package ds1054z

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/scope"
	"github.com/jupitervolta/ds1054z/internal/scopemock"
	"github.com/jupitervolta/ds1054z/internal/scopetest"
)

func startEmulator(t *testing.T, mutate func(*scopemock.Config)) (string, *scopemock.State) {
	t.Helper()

	cfg := scopemock.DefaultConfig()
	cfg.Network.Host = "127.0.0.1"
	cfg.Network.Port = 0
	cfg.Network.MaxConnections = 0
	cfg.Instrument.Points = 120
	cfg.Instrument.RawPoints = 600
	cfg.Timing.ArmDelayMs = 20
	cfg.Timing.TriggerHoldMs = 20
	if mutate != nil {
		mutate(cfg)
	}

	st := scopemock.NewState(cfg)
	server := scopemock.NewServer(cfg, st, zerolog.Nop())
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("emulator listen failed: %v", err)
	}
	go server.Serve()

	t.Cleanup(func() {
		server.Close()
		st.Close()
	})
	return addr.String(), st
}

func dialTest(t *testing.T, addr string) *Driver {
	t.Helper()

	d, err := Dial(context.Background(), addr, Options{
		DialTimeout: time.Second,
		IOTimeout:   500 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return d
}

func TestDriverConformance(t *testing.T) {
	addr, _ := startEmulator(t, nil)

	scopetest.RunConformance(t, func() scope.Device { return dialTest(t, addr) }, scopetest.Expectations{
		Name:              "ds1054z-emulator",
		DisplayedChannels: []string{"CHAN1", "CHAN2"},
		MinPoints:         120,
	})
}

func TestDriverSingleShotSequence(t *testing.T) {
	addr, st := startEmulator(t, func(cfg *scopemock.Config) {
		cfg.Timing.ArmDelayMs = 100
	})
	d := dialTest(t, addr)
	defer d.Close()
	ctx := context.Background()

	if err := d.Single(ctx); err != nil {
		t.Fatalf("Single failed: %v", err)
	}
	status, err := d.TriggerStatus(ctx)
	if err != nil {
		t.Fatalf("TriggerStatus failed: %v", err)
	}
	if status != scope.StatusWait {
		t.Errorf("Expected WAIT after Single, got %s", status)
	}

	if err := d.ForceTrigger(ctx); err != nil {
		t.Fatalf("ForceTrigger failed: %v", err)
	}
	status, err = d.TriggerStatus(ctx)
	if err != nil {
		t.Fatalf("TriggerStatus failed: %v", err)
	}
	if !status.IsTriggered() {
		t.Errorf("Expected triggered status after ForceTrigger, got %s", status)
	}

	stats := st.Snapshot()
	if stats.Singles != 1 || stats.Forces != 1 {
		t.Errorf("Expected 1 single and 1 force, got %+v", stats)
	}
}

func TestDriverRawWaveform(t *testing.T) {
	addr, _ := startEmulator(t, nil)
	d := dialTest(t, addr)
	defer d.Close()
	ctx := context.Background()

	samples, err := d.WaveformSamples(ctx, "CHAN1", scope.ModeRaw)
	if err != nil {
		t.Fatalf("WaveformSamples failed: %v", err)
	}
	if len(samples) != 600 {
		t.Errorf("Expected 600 raw samples, got %d", len(samples))
	}

	times, err := d.TimeAxis(ctx, scope.ModeRaw)
	if err != nil {
		t.Fatalf("TimeAxis failed: %v", err)
	}
	if len(times) != len(samples) {
		t.Errorf("Expected time axis of %d, got %d", len(samples), len(times))
	}
}

func TestDriverAttributes(t *testing.T) {
	addr, _ := startEmulator(t, nil)
	d := dialTest(t, addr)
	defer d.Close()
	ctx := context.Background()

	idn, err := d.GetAttr(ctx, "idn")
	if err != nil {
		t.Fatalf("GetAttr(idn) failed: %v", err)
	}
	if s, _ := idn.(string); s == "" {
		t.Errorf("Expected identity string, got %v", idn)
	}

	if err := d.SetAttr(ctx, "trigger_level", 0.5); err != nil {
		t.Fatalf("SetAttr failed: %v", err)
	}
	level, err := d.GetAttr(ctx, "trigger_level")
	if err != nil {
		t.Fatalf("GetAttr failed: %v", err)
	}
	if level != 0.5 {
		t.Errorf("Expected 0.5, got %v", level)
	}

	if err := d.SetAttr(ctx, "sample_rate", 1.0); !errors.Is(err, scope.ErrReadOnlyAttribute) {
		t.Errorf("Expected ErrReadOnlyAttribute, got %v", err)
	}
	if _, err := d.GetAttr(ctx, "no_such_thing"); !errors.Is(err, scope.ErrUnknownAttribute) {
		t.Errorf("Expected ErrUnknownAttribute, got %v", err)
	}
}

func TestDriverQueryTimeout(t *testing.T) {
	addr, _ := startEmulator(t, nil)
	d, err := Dial(context.Background(), addr, Options{IOTimeout: 100 * time.Millisecond, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer d.Close()

	// The instrument never answers an unknown query.
	_, err = d.Query(context.Background(), ":NOTHING:HERE?")
	if !errors.Is(err, scope.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestDriverCancelDuringRead(t *testing.T) {
	addr, _ := startEmulator(t, nil)
	d, err := Dial(context.Background(), addr, Options{IOTimeout: 5 * time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = d.Query(ctx, ":NOTHING:HERE?")
	if err == nil {
		t.Fatal("Expected error when the context expires")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected the read to stop with the context, took %v", elapsed)
	}
}

func TestDriverDisconnect(t *testing.T) {
	cfg := scopemock.DefaultConfig()
	cfg.Network.Host = "127.0.0.1"
	cfg.Network.Port = 0
	st := scopemock.NewState(cfg)
	defer st.Close()
	server := scopemock.NewServer(cfg, st, zerolog.Nop())
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve()

	d := dialTest(t, addr.String())
	defer d.Close()
	ctx := context.Background()

	if _, err := d.Query(ctx, "*IDN?"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	server.Close()

	_, err = d.Query(ctx, "*IDN?")
	if !scope.IsFatal(err) {
		t.Errorf("Expected fatal error after the instrument drops the link, got %v", err)
	}
	if d.GetStatus() != "offline" {
		t.Errorf("Expected status offline, got %s", d.GetStatus())
	}
}

func TestDialRefused(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", Options{DialTimeout: 500 * time.Millisecond})
	if err == nil {
		t.Fatal("Expected dial error")
	}
	if !scope.IsFatal(err) {
		t.Errorf("Expected refused dial to be fatal, got %v", err)
	}
}
