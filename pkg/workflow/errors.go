package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrUnknownHandler is returned when a pinned handler is not registered.
	ErrUnknownHandler = errors.New("unknown handler")
)

// InvalidStateError reports a run that reached a transition in a phase that
// transition does not accept. It ends that run only.
type InvalidStateError struct {
	Phase      Phase
	Transition string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %q for %s", e.Phase, e.Transition)
}
