//go:build linux

package reactor

func platformCandidates() []backendCandidate {
	return []backendCandidate{
		{envName: "EVENT_NOEPOLL", ctor: newEpollBackend},
	}
}
