package schedule

import (
	"errors"
	"fmt"
)

// ErrRange matches every *RangeError via errors.Is.
var ErrRange = errors.New("range error")

const (
	msgNegativeTotal = "Can't set total number of streams to less than 0!"
	msgOutOfRange    = "Template is out of range!"
)

// RangeError is the only failure a transition can produce. The container's
// state is unchanged whenever one is returned.
type RangeError struct {
	// Op is the action name, e.g. "setTemplate".
	Op string
	// Value is the rejected argument (an index or a stream count).
	Value int
	// Len is the template count at the time of the call.
	Len int
	Msg string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s (value=%d, templates=%d)", e.Op, e.Msg, e.Value, e.Len)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

// checkIndex applies the shared bound check of the index operations.
// index == length is accepted.
func checkIndex(op string, index, length int) error {
	if index > length || index < 0 {
		return &RangeError{Op: op, Value: index, Len: length, Msg: msgOutOfRange}
	}
	return nil
}
