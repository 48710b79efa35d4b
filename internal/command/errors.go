package command

import (
	"context"
	"errors"
	"io/fs"

	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope"
)

// Envelope codes.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnsupported  = "UNSUPPORTED"
	CodeInconsistent = "INCONSISTENT"
	CodeIO           = "IO"
	CodeInstrument   = "INSTRUMENT"
	CodeConfig       = "CONFIG"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL"
)

var (
	// ErrValidation marks a malformed call: missing or mistyped arguments.
	ErrValidation = errors.New(CodeBadRequest)

	// ErrUnsupported marks an operation name outside the table.
	ErrUnsupported = errors.New(CodeUnsupported)

	// ErrUnauthorized marks a caller whose role does not allow the operation.
	ErrUnauthorized = errors.New(CodeUnauthorized)

	// ErrInternal marks a recovered panic or an unexpected state.
	ErrInternal = errors.New(CodeInternal)
)

// ErrorEnvelope is the result of a failed operation. Callers branch on the
// presence of the error key.
type ErrorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Envelope wraps err for the wire.
func Envelope(err error) ErrorEnvelope {
	return ErrorEnvelope{Error: err.Error(), Code: Code(err)}
}

// Code maps an error onto its envelope code. Order matters: wrapped
// configuration failures also carry the instrument error underneath.
func Code(err error) string {
	var pathErr *fs.PathError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, scope.ErrUnknownAttribute),
		errors.Is(err, scope.ErrReadOnlyAttribute),
		errors.Is(err, scope.ErrInvalidValue),
		errors.Is(err, persist.ErrInvalidFilename),
		errors.Is(err, persist.ErrInvalidJSON):
		return CodeBadRequest
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, capture.ErrConfig):
		return CodeConfig
	case errors.Is(err, persist.ErrLengthMismatch):
		return CodeInconsistent
	case errors.Is(err, scope.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, scope.ErrInstrument),
		errors.Is(err, scope.ErrDisconnected),
		errors.Is(err, capture.ErrBusy):
		return CodeInstrument
	case errors.Is(err, persist.ErrMissingExtension),
		errors.Is(err, persist.ErrUnsupportedExtension),
		errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.As(err, &pathErr):
		return CodeIO
	default:
		return CodeInternal
	}
}
