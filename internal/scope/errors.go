package scope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
)

// Normalized instrument errors.
var (
	ErrInstrument   = errors.New("INSTRUMENT")
	ErrTimeout      = errors.New("TIMEOUT")
	ErrDisconnected = errors.New("DISCONNECTED")

	// Attribute table errors are caller mistakes, not instrument faults.
	ErrUnknownAttribute  = errors.New("UNKNOWN_ATTRIBUTE")
	ErrReadOnlyAttribute = errors.New("READ_ONLY_ATTRIBUTE")
	ErrInvalidValue      = errors.New("INVALID_VALUE")
)

// TokenMap lists substrings that classify a raw error message.
type TokenMap struct {
	Timeout      []string
	Disconnected []string
	InvalidValue []string
}

// InstrumentErrorTokens is the table used by NormalizeInstrumentError.
// Unknown messages map to ErrInstrument.
var InstrumentErrorTokens = TokenMap{
	Timeout: []string{
		"I/O TIMEOUT",
		"DEADLINE EXCEEDED",
		"TIMED OUT",
	},
	Disconnected: []string{
		"CONNECTION RESET",
		"CONNECTION REFUSED",
		"BROKEN PIPE",
		"USE OF CLOSED NETWORK CONNECTION",
		"NO ROUTE TO HOST",
		"NOT CONNECTED",
		"EOF",
	},
	InvalidValue: []string{
		"DATA OUT OF RANGE",
		"PARAMETER NOT ALLOWED",
		"ILLEGAL PARAMETER VALUE",
		"INVALID CHARACTER DATA",
	},
}

// InstrumentError wraps a driver failure with the command that caused it.
type InstrumentError struct {
	Code     error  // Normalized code
	Command  string // SCPI command in flight, if any
	Original error  // Underlying transport or instrument error
}

func (e *InstrumentError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%v: %s (instrument: %v)", e.Code, e.Command, e.Original)
	}
	return fmt.Sprintf("%v (instrument: %v)", e.Code, e.Original)
}

func (e *InstrumentError) Unwrap() error {
	return e.Code
}

// NormalizeInstrumentError classifies err and wraps it in an InstrumentError.
// Errors that already carry a normalized code are returned unchanged.
func NormalizeInstrumentError(err error, command string) error {
	if err == nil {
		return nil
	}

	var ie *InstrumentError
	if errors.As(err, &ie) {
		return err
	}

	return &InstrumentError{
		Code:     classify(err),
		Command:  command,
		Original: err,
	}
}

// IsFatal reports whether the error means the instrument link is gone.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

func classify(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNREFUSED):
		return ErrDisconnected
	}

	msg := strings.ToUpper(err.Error())

	for _, token := range InstrumentErrorTokens.Timeout {
		if strings.Contains(msg, token) {
			return ErrTimeout
		}
	}

	for _, token := range InstrumentErrorTokens.Disconnected {
		if strings.Contains(msg, token) {
			return ErrDisconnected
		}
	}

	for _, token := range InstrumentErrorTokens.InvalidValue {
		if strings.Contains(msg, token) {
			return ErrInvalidValue
		}
	}

	return ErrInstrument
}
