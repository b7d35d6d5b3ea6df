package reactor

import (
	"os"
	"strings"
	"time"
)

// backend is the five-operation contract every readiness mechanism
// implements: name, add, del, dispatch, dealloc, plus a needReinit flag
// for mechanisms whose kernel-held state does not survive a fork.
type backend interface {
	// name identifies the backend for EVENT_SHOW_METHOD reporting and
	// get_method.
	name() string
	// add makes ev's fd/interest known to the backend. Idempotent with
	// respect to ev's current registration state.
	add(ev *Event) error
	// del revokes ev's prior registration.
	del(ev *Event) error
	// dispatch blocks for up to timeout (nil = forever, 0 = non-blocking
	// poll), reporting ready events via active. Interruption by a signal
	// is not an error.
	dispatch(timeout *time.Duration, active func(ev *Event, mask Mask)) error
	// dealloc frees all internal backend state.
	dealloc() error
	// needReinit reports whether this backend's kernel resources fail to
	// survive a fork and so must be recreated in the child.
	needReinit() bool
}

// backendCandidate names a constructor and the EVENT_NO* environment
// override that disables it.
type backendCandidate struct {
	envName string
	ctor    func() (backend, error)
}

// candidates returns the compile-time-gated, platform-ordered list of
// backend constructors: kqueue, then epoll, then poll, each present only
// on platforms that build the corresponding file (backend_kqueue_unix.go,
// backend_epoll_linux.go, backend_poll_unix.go).
func candidates() []backendCandidate {
	var out []backendCandidate
	out = append(out, platformCandidates()...)
	out = append(out, backendCandidate{envName: "EVENT_NOPOLL", ctor: newPollBackend})
	return out
}

// selectBackend tries each candidate in order, skipping any whose
// EVENT_NO* override is present, and returns the first whose
// constructor succeeds.
func selectBackend(override string) (backend, error) {
	for _, c := range candidates() {
		if override != "" && c.envName != "" {
			// WithBackendOverride pins a single candidate by matching its
			// env-var name without the EVENT_NO prefix, e.g. "poll"; the
			// env names are upper-case so the comparison is case-insensitive.
			if "EVENT_NO"+strings.ToUpper(override) != c.envName {
				continue
			}
		} else if envTruthy(c.envName) {
			continue
		}
		b, err := c.ctor()
		if err != nil {
			continue
		}
		if showMethodEnv() {
			os.Stderr.WriteString("reactor: using " + b.name() + " backend\n")
		}
		return b, nil
	}
	return nil, ErrNoBackend
}

func envTruthy(name string) bool {
	if name == "" {
		return false
	}
	_, ok := os.LookupEnv(name)
	return ok
}

func showMethodEnv() bool {
	_, ok := os.LookupEnv("EVENT_SHOW_METHOD")
	return ok
}
