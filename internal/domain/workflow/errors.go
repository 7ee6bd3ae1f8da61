package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the target state is not reachable from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRoleNotPermitted is returned when the actor's role may not initiate the transition
	ErrRoleNotPermitted = errors.New("role not permitted for transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")
)

// TransitionError describes a rejected transition request
type TransitionError struct {
	From     State
	To       State
	Role     Role
	Required Role
	Err      error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrRoleNotPermitted) {
		return fmt.Sprintf("%v: %s -> %s requires %s, actor has %s", e.Err, e.From, e.To, e.Required, e.Role)
	}
	return fmt.Sprintf("%v: %s -> %s", e.Err, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// InvalidStateError is returned when a stored value is not a lifecycle state
type InvalidStateError struct {
	Value string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidState, e.Value)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
