package puzzle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is called in a state
	// that forbids it. Match with errors.Is; the concrete value is a
	// *TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrUnknownElement    = errors.New("unknown element")
	ErrNoHint            = errors.New("no hint available")
)

// TransitionError records which operation was refused and in which state.
type TransitionError struct {
	Op    string
	State string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func invalid(op string, s State) error {
	return &TransitionError{Op: op, State: s.String()}
}
