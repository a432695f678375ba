package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned before any phase runs when the uploaded
// request cannot be analyzed at all (empty video, oversize upload).
var ErrInvalidInput = errors.New("invalid analysis input")

// ErrJobTimedOut is returned when the overall job deadline expires before
// the signals could be fused.
var ErrJobTimedOut = errors.New("analysis job timed out")

// CriticalPhaseError wraps a failure in a phase the requested track cannot
// proceed without. Non-critical phase failures degrade the report instead.
type CriticalPhaseError struct {
	Phase string
	Err   error
}

func (e *CriticalPhaseError) Error() string {
	return fmt.Sprintf("critical phase %s failed: %v", e.Phase, e.Err)
}

func (e *CriticalPhaseError) Unwrap() error {
	return e.Err
}
