package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jupitervolta/ds1054z/internal/logger"
	"github.com/jupitervolta/ds1054z/internal/scopemock"
)

func main() {
	closer, err := logger.Init(logger.DefaultConfig())
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()
	log := logger.WithComponent("scopemock")

	log.Info().Msg("Starting DS1054Z SCPI emulator...")

	cfg, err := scopemock.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Interface("config", cfg).Msg("Configuration loaded")

	state := scopemock.NewState(cfg)
	server := scopemock.NewServer(cfg, state, log)

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("SCPI server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down emulator...")

	if err := server.Close(); err != nil {
		log.Error().Err(err).Msg("SCPI server shutdown error")
	}
	if err := state.Close(); err != nil {
		log.Error().Err(err).Msg("Emulator state shutdown error")
	}

	log.Info().Msg("Emulator stopped")
}
