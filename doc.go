// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor is a single-threaded event-notification core: a reactor
// that multiplexes file-descriptor readiness, process-signal delivery, and
// timer expiry, dispatching each to a user-supplied callback.
//
// # Registration
//
//	r, err := reactor.Create()
//	ev := &reactor.Event{}
//	r.SetFDEvent(ev, fd, reactor.Read|reactor.Persist, onReadable, nil)
//	r.BindToReactor(ev)
//	r.Add(ev, nil)
//	r.Loop(reactor.LoopDefault)
//
// # Backends
//
// The readiness backend is chosen at Create time from a platform-ordered
// list of candidates (kqueue, epoll, poll); see backend.go. Only one
// backend is active per reactor instance.
//
// # Safety
//
// A Reactor is not safe for concurrent use. Registration and the loop must
// run on the same goroutine. Callbacks run on that goroutine and may call
// Del, LoopBreak and LoopExit from within a dispatch.
package reactor
