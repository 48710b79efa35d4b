package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLevels(t *testing.T) {
	closer, err := Init(Config{Level: "warn", Output: "discard"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer closer.Close()

	if GetLogger().GetLevel() != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %v", GetLogger().GetLevel())
	}

	closer, err = Init(Config{Level: "warn", Debug: true, Output: "discard"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer closer.Close()

	if GetLogger().GetLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level to win, got %v", GetLogger().GetLevel())
	}
}

func TestInitInvalidLevel(t *testing.T) {
	if _, err := Init(Config{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oscope.log")

	closer, err := Init(Config{Level: "info", Output: "discard", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	componentLogger := WithComponent("capture")
	componentLogger.Info().Msg("armed")

	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"capture"`) {
		t.Errorf("Expected component field in %q", data)
	}
	if !strings.Contains(string(data), `"message":"armed"`) {
		t.Errorf("Expected message in %q", data)
	}
}
