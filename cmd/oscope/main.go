// Package main runs the oscilloscope capture server: the arm/watch/capture
// loop, the command dispatcher behind the message bus and the HTTP API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jupitervolta/ds1054z/internal/api"
	"github.com/jupitervolta/ds1054z/internal/audit"
	"github.com/jupitervolta/ds1054z/internal/auth"
	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/command"
	"github.com/jupitervolta/ds1054z/internal/config"
	"github.com/jupitervolta/ds1054z/internal/device"
	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/logger"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope/ds1054z"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
	"github.com/jupitervolta/ds1054z/internal/transport"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	// Step 1: Load configuration
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Step 2: Initialize logging
	closer, err := logger.Init(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()
	log := logger.WithComponent("oscope")
	log.Info().Str("version", Version).Msg("Starting oscilloscope server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("oscope")

	// Step 3: Initialize audit logger
	auditLogger, err := audit.NewLogger(cfg.Audit.Dir, audit.Options{
		MaxSizeMB:  cfg.Audit.MaxSizeMB,
		MaxBackups: cfg.Audit.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer auditLogger.Close()
	log.Info().Str("file", auditLogger.GetFilePath()).Msg("Audit logger initialized")

	// Step 4: Connect to the instrument
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Instrument.DialTimeout+time.Second)
	driver, err := ds1054z.Dial(dialCtx, cfg.Instrument.Address, ds1054z.Options{
		DialTimeout: cfg.Instrument.DialTimeout,
		IOTimeout:   cfg.Instrument.IOTimeout,
		Logger:      logger.WithComponent("ds1054z"),
	})
	cancel()
	if err != nil {
		return err
	}
	defer driver.Close()
	handle := device.NewHandle(driver)
	log.Info().Str("address", cfg.Instrument.Address).Msg("Instrument connected")

	// Step 5: Initialize telemetry hub
	hub := telemetry.NewHub(cfg.Telemetry, logger.WithComponent("telemetry"))
	defer hub.Stop()

	shares := persist.Shares{
		HDDRoot: cfg.Shares.HDDRoot,
		SSDRoot: cfg.Shares.SSDRoot,
		DirMode: os.FileMode(cfg.Shares.DirMode),
	}

	// Step 6: Create capture orchestrator
	orchestrator, err := capture.NewOrchestrator(handle, shares, cfg.Capture, cfg.Profile, logger.WithComponent("capture"))
	if err != nil {
		return err
	}
	orchestrator.SetPublisher(hub)
	hub.SetSnapshot(orchestrator.Snapshot)

	// Step 7: Create command dispatcher
	dispatcher := command.NewDispatcher(handle, shares, logger.WithComponent("command"))
	dispatcher.SetCapture(orchestrator)
	dispatcher.SetAuditLogger(auditLogger)
	dispatcher.SetPublisher(hub)
	dispatcher.SetTimeout(cfg.Dispatch.Timeout)
	overlay, err := imaging.LoadOverlay(cfg.Capture.OverlayPath)
	if err != nil {
		return errors.Join(capture.ErrConfig, err)
	}
	dispatcher.SetOverlay(overlay, cfg.Capture.OverlayAlpha)

	// Step 8: Create API server
	verifier, err := auth.FromConfig(cfg.API)
	if err != nil && !errors.Is(err, auth.ErrNoCredentials) {
		return err
	}
	if verifier == nil {
		log.Warn().Msg("No auth secret or key configured, HTTP API is unauthenticated")
	}
	queue := transport.NewQueue(cfg.Transport.QueueSize)
	server := api.NewServer(cfg.API, api.Deps{
		Requests:   queue,
		Telemetry:  hub,
		Status:     orchestrator,
		Instrument: handle,
		Auth:       auth.NewMiddleware(verifier, logger.WithComponent("auth")),
	}, logger.WithComponent("api"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(transport.Serve(gctx, queue, dispatcher, logger.WithComponent("transport")))
	})

	// Step 9: Attach the message bus, if configured
	if cfg.Transport.NATSURL != "" {
		conn, err := transport.Connect(cfg.Transport, logger.WithComponent("nats"))
		if err != nil {
			return err
		}
		defer conn.Close()

		bridge := transport.NewNATSBridge(conn, cfg.Transport.Subject, queue, logger.WithComponent("nats"))
		hub.AddSink(bridge)
		g.Go(func() error {
			return ignoreCanceled(bridge.Run(gctx))
		})
	} else {
		g.Go(func() error {
			return ignoreCanceled(transport.Route(gctx, queue, nil, logger.WithComponent("transport")))
		})
	}

	// Step 10: Start the capture loop
	if cfg.Capture.Enabled {
		g.Go(func() error {
			return ignoreCanceled(orchestrator.Run(gctx))
		})
	}

	// Step 11: Start HTTP server
	g.Go(func() error {
		return server.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Initiating graceful shutdown...")
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
