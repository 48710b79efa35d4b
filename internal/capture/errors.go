package capture

import "errors"

var (
	// ErrConfig wraps a failure to apply the instrument profile.
	ErrConfig = errors.New("CONFIG")

	// ErrBusy is returned when a bounded run is requested while a loop is active.
	ErrBusy = errors.New("BUSY")
)
