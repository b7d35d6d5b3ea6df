package reactor

import (
	"sync"
	"time"
)

// Deprecated global-reactor API, preserved for callers migrating from
// code written before per-instance Reactors existed. New code should
// call Create and use the returned *Reactor directly.
var (
	defaultMu sync.Mutex
	defaultR  *Reactor
)

// InitDefault creates the process-wide default Reactor, replacing any
// previous one (the replaced instance is left running; callers that
// still hold a reference to it are unaffected).
//
// Deprecated: use Create.
func InitDefault(opts ...Option) error {
	r, err := Create(opts...)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultR = r
	defaultMu.Unlock()
	return nil
}

// Default returns the process-wide default Reactor, creating one with
// no options if InitDefault has not been called.
//
// Deprecated: use Create.
func Default() *Reactor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultR == nil {
		// panics if backend selection fails; callers wanting the error
		// should call InitDefault first.
		r, err := Create()
		if err != nil {
			panic(err)
		}
		defaultR = r
	}
	return defaultR
}

// AddEvent registers ev on the default Reactor.
//
// Deprecated: use (*Reactor).Add.
func AddEvent(ev *Event, timeout *time.Duration) error {
	return Default().Add(ev, timeout)
}

// DelEvent removes ev from the default Reactor.
//
// Deprecated: use (*Reactor).Del.
func DelEvent(ev *Event) error {
	return Default().Del(ev)
}

// Dispatch runs the default Reactor's main loop.
//
// Deprecated: use (*Reactor).Loop.
func Dispatch() (int, error) {
	return Default().Loop(LoopDefault)
}
