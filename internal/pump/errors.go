package pump

import "codeberg.org/mutker/irrigatectl/internal/errors"

const (
	// Both lifecycle failures surface as invalid_state so callers only
	// branch on one code.
	ErrNotInitialized = errors.ErrInvalidState
	ErrClosed         = errors.ErrInvalidState
)

const (
	msgNotInitialized = "pump controller not initialized"
	msgClosed         = "pump controller closed"
)
