package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("permission denied")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNoActiveSession    = errors.New("no active interview session")
	ErrInterviewMissing   = errors.New("interview definition not found")
	ErrInterviewClosed    = errors.New("interview is not accepting candidates")
	ErrAlreadyCompleted   = errors.New("interview already taken")
	ErrDuplicateSession   = errors.New("session already exists")
	ErrSessionNotFinished = errors.New("session is not finished")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrRoomBusy           = errors.New("room already open for session")
)

// Invalid wraps ErrInvalidInput with a formatted detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
