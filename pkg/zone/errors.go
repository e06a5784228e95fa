package zone

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOccupant is returned when progress is reported for a vehicle that holds no slot.
	ErrNotOccupant = errors.New("vehicle is not in the zone")
	// ErrProgressRegression is returned when a step does not move progress forward.
	ErrProgressRegression = errors.New("progress must increase")
	// ErrProgressOutOfRange is returned when a step is outside 1..steps.
	ErrProgressOutOfRange = errors.New("progress out of range")
)

// ErrorCode classifies invariant violations
type ErrorCode int

const (
	// No violation
	ErrCodeNone ErrorCode = iota
	// More occupants than slots
	ErrCodeOverCapacity
	// Occupants present but no committed direction, or the reverse
	ErrCodeLockMismatch
	// An occupant travels against the committed direction
	ErrCodeMixedDirections
	// Two occupants share a slot, or a slot index is out of range
	ErrCodeSlotConflict
	// Progress outside 0..steps
	ErrCodeBadProgress
	// Semaphore tokens and occupants disagree
	ErrCodeTokenLeak
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOverCapacity:
		return "over-capacity"
	case ErrCodeLockMismatch:
		return "lock-mismatch"
	case ErrCodeMixedDirections:
		return "mixed-directions"
	case ErrCodeSlotConflict:
		return "slot-conflict"
	case ErrCodeBadProgress:
		return "bad-progress"
	case ErrCodeTokenLeak:
		return "token-leak"
	default:
		return "none"
	}
}

// InvariantError reports a broken zone invariant. It indicates a locking bug, never an expected runtime condition.
type InvariantError struct {
	Code    ErrorCode
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("zone invariant violated [%s]: %s", e.Code, e.Message)
}

// NewInvariantError creates a new invariant error
func NewInvariantError(code ErrorCode, format string, args ...any) *InvariantError {
	return &InvariantError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsInvariantError checks if an error is an InvariantError
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
