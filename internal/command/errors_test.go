package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope"
)

func TestCode(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", fmt.Errorf("%w: missing", ErrValidation), CodeBadRequest},
		{"unknown attribute", fmt.Errorf("get: %w", scope.ErrUnknownAttribute), CodeBadRequest},
		{"read only", scope.ErrReadOnlyAttribute, CodeBadRequest},
		{"unsupported", ErrUnsupported, CodeUnsupported},
		{"unauthorized", ErrUnauthorized, CodeUnauthorized},
		{"length mismatch", fmt.Errorf("write: %w", persist.ErrLengthMismatch), CodeInconsistent},
		{"missing extension", persist.ErrMissingExtension, CodeIO},
		{"image format", imaging.ErrUnsupportedFormat, CodeIO},
		{"path error", statErr, CodeIO},
		{"invalid value", scope.NormalizeInstrumentError(errors.New("-222,\"Data out of range\""), ":CHAN1:SCAL"), CodeBadRequest},
		{"instrument", scope.NormalizeInstrumentError(errors.New("-113,\"Undefined header\""), ":FOO"), CodeInstrument},
		{"disconnected", scope.NormalizeInstrumentError(errors.New("broken pipe"), ":SING"), CodeInstrument},
		{"scope timeout", scope.NormalizeInstrumentError(errors.New("i/o timeout"), ":WAV:DATA?"), CodeTimeout},
		{"context deadline", context.DeadlineExceeded, CodeTimeout},
		{"config wraps instrument", fmt.Errorf("%w: %w", capture.ErrConfig, scope.ErrInstrument), CodeConfig},
		{"busy", capture.ErrBusy, CodeInstrument},
		{"internal", ErrInternal, CodeInternal},
		{"other", errors.New("surprise"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Expected code %s, got %s (%v)", tt.want, got, tt.err)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	env := Envelope(fmt.Errorf("%w: setattr requires at least 2 arguments, got 1", ErrValidation))
	if env.Code != CodeBadRequest {
		t.Errorf("Expected code BAD_REQUEST, got %s", env.Code)
	}
	if env.Error == "" {
		t.Error("Expected error message")
	}
	if Code(nil) != "" {
		t.Errorf("Expected empty code for nil error, got %s", Code(nil))
	}
}
