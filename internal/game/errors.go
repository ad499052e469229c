package game

import "errors"

// Game errors.
var (
	ErrClosed        = errors.New("game closed")
	ErrUseHalfButton = errors.New("button is split, click one of the halves")
	ErrNotSplit      = errors.New("button is not split")
	ErrFeatureLocked = errors.New("feature not unlocked yet")
	ErrInvalidTheme  = errors.New("invalid button theme")
	ErrUnknownPanel  = errors.New("unknown panel")
)

// ValidationError is a user-facing input problem. It is reported next to the
// offending input rather than treated as a failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
