//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

func platformCandidates() []backendCandidate {
	return []backendCandidate{
		{envName: "EVENT_NOKQUEUE", ctor: newKqueueBackend},
	}
}
