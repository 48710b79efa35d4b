package persist

import "errors"

var (
	// ErrLengthMismatch is returned when series in one table differ in length.
	ErrLengthMismatch = errors.New("INCONSISTENT")

	// ErrMissingExtension is returned when a target path has no extension.
	ErrMissingExtension = errors.New("missing file extension")

	// ErrUnsupportedExtension is returned for tabular targets other than .csv and .txt.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrInvalidFilename is returned for names containing path separators.
	ErrInvalidFilename = errors.New("invalid file name")

	// ErrInvalidJSON is returned when a note is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)
