package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTaskDisabled is returned when running a task whose active flag is false.
	ErrTaskDisabled = errors.New("task is disabled")

	// ErrCancelled matches every *CancelledError.
	ErrCancelled = errors.New("run cancelled")

	// ErrRunNotFound is returned for run ids the runner does not know or no
	// longer tracks.
	ErrRunNotFound = errors.New("run not found")
)

// StepError reports the step that halted a run.
type StepError struct {
	Index int
	Type  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Type, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CancelledError reports a run stopped by cancellation or by its deadline.
// StepIndex is the step that was interrupted or would have run next.
type CancelledError struct {
	StepIndex int
	Cause     error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled at step %d: %v", e.StepIndex, e.Cause)
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// DeadlineExceeded reports whether the cancellation came from the run's
// deadline rather than an explicit cancel.
func (e *CancelledError) DeadlineExceeded() bool {
	return errors.Is(e.Cause, context.DeadlineExceeded)
}
