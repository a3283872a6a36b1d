package analysis

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches every *InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports that a statistic is mathematically undefined
// for the current selection. Callers present a "not enough data" state.
type InsufficientDataError struct {
	Op     string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: %s", e.Op, e.Reason)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func insufficient(op, reason string) error {
	return &InsufficientDataError{Op: op, Reason: reason}
}
