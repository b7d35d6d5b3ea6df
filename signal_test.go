package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimSignalOwnershipIsExclusive(t *testing.T) {
	signo := 9999901 // unused signal number, private to this test
	defer releaseSignal(signo, nil)

	r1 := &Reactor{}
	owner, ok := claimSignal(signo, r1)
	require.True(t, ok)
	require.Same(t, r1, owner)

	r2 := &Reactor{}
	owner, ok = claimSignal(signo, r2)
	require.False(t, ok)
	require.Same(t, r1, owner, "a second claimant must observe the existing owner, not steal it")
}

func TestReleaseSignalOnlyByOwner(t *testing.T) {
	signo := 9999902
	r1 := &Reactor{}
	r2 := &Reactor{}

	_, ok := claimSignal(signo, r1)
	require.True(t, ok)

	releaseSignal(signo, r2) // not the owner, must be a no-op
	_, ok = claimSignal(signo, r2)
	require.False(t, ok, "release by a non-owner must not free the signal")

	releaseSignal(signo, r1)
	_, ok = claimSignal(signo, r2)
	require.True(t, ok, "release by the true owner must free the signal")
	releaseSignal(signo, r2)
}

func TestSignalInfoDeliverCoalescesCounts(t *testing.T) {
	si := &signalInfo{subscribers: make(map[int]*eventList)}
	si.pipeW = -1 // deliver writes to the pipe; redirect away from a real fd

	// each deliver bumps the per-signal counter; the write to fd -1 fails
	// and is ignored, so no real pipe is touched.
	si.deliver(5)
	si.deliver(5)
	si.deliver(5)
	require.Equal(t, int32(3), si.countFor(5).Load())
}
