package pipeline

import "errors"

// Fatal error kinds. Per-sample detector or motion failures are not here
// on purpose: those degrade to "no signal" for the sample and the pass
// continues.
var (
	// ErrInputUnreadable marks a source that cannot be opened or probed.
	ErrInputUnreadable = errors.New("input unreadable")

	// ErrInvalidDimensions marks a source or computed target below the
	// minimum encodable size. Not retryable.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrDetectorUnavailable is returned when face mode is forced but no
	// detection backend can be initialized. In auto mode the selector
	// falls back to screen mode instead.
	ErrDetectorUnavailable = errors.New("face detector unavailable")
)
