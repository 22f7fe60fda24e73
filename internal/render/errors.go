package render

import (
	"errors"
	"fmt"

	"natronfarm/internal/services"
)

// ErrOutOfOrder is returned when a step is called in the wrong state.
var ErrOutOfOrder = errors.New("render step out of order")

// TaskError is a task failure with an operator-facing reason. It unwraps to a
// services marker so callers can classify it with services.FailureStatus.
type TaskError struct {
	Step   string
	Reason string
	err    error
}

func newTaskError(marker error, step, reason string, cause error) *TaskError {
	return &TaskError{
		Step:   step,
		Reason: reason,
		err:    services.Wrap(marker, "render", step, reason, cause),
	}
}

func (e *TaskError) Error() string {
	return e.Reason
}

func (e *TaskError) Unwrap() error {
	return e.err
}

func outOfOrder(step string, state State) error {
	return fmt.Errorf("%w: %s called while %s", ErrOutOfOrder, step, state)
}
