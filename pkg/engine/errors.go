package engine

import (
	"errors"
	"fmt"
)

// ErrGuardFailed indicates a guard expression could not be evaluated. The trigger writes nothing.
var ErrGuardFailed = errors.New("guard evaluation failed")

type Phase string

const (
	PhaseExit  Phase = "exit"
	PhaseEnter Phase = "enter"
)

// ActionError reports a failed enter or exit action.
type ActionError struct {
	Phase     Phase
	Reference string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action %q failed: %v", e.Phase, e.Reference, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Committed reports whether the transition was already persisted when the action failed.
// Exit actions run before the write, enter actions after it.
func (e *ActionError) Committed() bool {
	return e.Phase == PhaseEnter
}

// IsActionError checks if err carries an ActionError.
func IsActionError(err error) bool {
	var actionErr *ActionError

	return errors.As(err, &actionErr)
}
