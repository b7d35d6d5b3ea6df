package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by reactor operations.
var (
	// ErrNoBackend is returned by Create when no backend candidate
	// initializes (backend-selection-failure).
	ErrNoBackend = errors.New("reactor: no readiness backend available")

	// ErrEventsActive is returned by SetPriorities when called while any
	// event is active (invalid-state).
	ErrEventsActive = errors.New("reactor: cannot change priority count while events are active")

	// ErrNotInitialized is returned by BindToReactor when the event has
	// not been initialized via SetEvent (invalid-state).
	ErrNotInitialized = errors.New("reactor: event is not initialized")

	// ErrSignalOnce is returned by Once when asked to wrap a signal
	// binding, which would be persistent by nature (invalid-state).
	ErrSignalOnce = errors.New("reactor: Once does not support signal bindings")

	// ErrSignalOwned is returned by Add when a signal event's number is
	// already owned by a different reactor instance.
	ErrSignalOwned = errors.New("reactor: signal already owned by another reactor")

	// ErrPriorityRange is returned by BindToReactor when an
	// event's priority is out of [0, P).
	ErrPriorityRange = errors.New("reactor: priority out of range")
)

// BackendError wraps a failure returned by a backend operation
// (add/del/dispatch).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("reactor: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// InvalidStateError wraps an invalid-state condition: an operation
// attempted from a state that forbids it. No reactor state is changed
// when this error is returned.
type InvalidStateError struct {
	Op     string
	Reason error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reactor: %s: %v", e.Op, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return e.Reason }
