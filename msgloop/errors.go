package msgloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyBound is returned by New when the calling goroutine is
	// already bound to a Loop.
	ErrLoopAlreadyBound = errors.New("msgloop: goroutine already has a loop")

	// ErrNotLoopGoroutine is returned (or panicked) when an operation that is
	// restricted to the loop's own goroutine is attempted from another.
	ErrNotLoopGoroutine = errors.New("msgloop: not called on the loop goroutine")

	// ErrLoopClosed is returned when operations are attempted on a closed loop.
	ErrLoopClosed = errors.New("msgloop: loop has been closed")

	// ErrLoopRunning is returned by Close while Run is active.
	ErrLoopRunning = errors.New("msgloop: loop is running")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("msgloop: task panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
