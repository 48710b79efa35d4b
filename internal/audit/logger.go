package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the audit trail inside the configured directory.
const FileName = "audit.jsonl"

// Outcome codes written for successful calls. Failures carry the envelope code.
const CodeSuccess = "SUCCESS"

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	Timestamp     time.Time              `json:"ts"`
	User          string                 `json:"user"`
	Instrument    string                 `json:"instrument"`
	Action        string                 `json:"action"`
	Params        map[string]interface{} `json:"params"`
	Code          string                 `json:"code"`
	LatencyMs     float64                `json:"latencyMs"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// Options sizes the rotated file.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
}

// Logger appends audit entries to a rotated JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *lumberjack.Logger
}

// NewLogger opens (or creates) the audit trail in logDir.
func NewLogger(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, FileName)

	// Fail early on an unwritable directory; lumberjack would only report it on first write.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	f.Close()

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}

	return &Logger{
		filePath: filePath,
		file: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		},
	}, nil
}

// LogAction records one dispatched operation.
func (l *Logger) LogAction(ctx context.Context, action, instrument, code string, latency time.Duration) {
	entry := AuditEntry{
		Timestamp:     time.Now().UTC(),
		User:          UserFromContext(ctx),
		Instrument:    instrument,
		Action:        action,
		Params:        ParamsFromContext(ctx),
		Code:          code,
		LatencyMs:     float64(latency.Microseconds()) / 1000,
		CorrelationID: CorrelationIDFromContext(ctx),
	}
	l.writeEntry(entry)
}

func (l *Logger) writeEntry(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.file.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Close closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate moves the current file aside and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit logger is closed")
	}
	return l.file.Rotate()
}
