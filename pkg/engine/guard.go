package engine

import (
	"context"
	"sync"
)

type guardKey struct {
	flowID     string
	subjectKey string
}

type guardEntry struct {
	cancel context.CancelFunc
}

// Guard admits at most one in-flight traversal per (flow, subject) pair in
// this process. Each admitted traversal gets a context Cancel can end.
type Guard struct {
	mu       sync.Mutex
	inFlight map[guardKey]*guardEntry
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[guardKey]*guardEntry)}
}

// Acquire admits a traversal. When ok is false another traversal holds the
// pair and the returned context and release are nil. release must be called
// exactly once when the traversal ends, whatever its outcome.
func (g *Guard) Acquire(ctx context.Context, flowID, subjectKey string) (context.Context, func(), bool) {
	key := guardKey{flowID: flowID, subjectKey: subjectKey}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, nil, false
	}

	traversalCtx, cancel := context.WithCancel(ctx)
	entry := &guardEntry{cancel: cancel}
	g.inFlight[key] = entry

	release := func() {
		g.mu.Lock()
		if g.inFlight[key] == entry {
			delete(g.inFlight, key)
		}
		g.mu.Unlock()

		cancel()
	}

	return traversalCtx, release, true
}

// Cancel ends the in-flight traversal for the pair, if any.
func (g *Guard) Cancel(flowID, subjectKey string) bool {
	g.mu.Lock()
	entry, ok := g.inFlight[guardKey{flowID: flowID, subjectKey: subjectKey}]
	g.mu.Unlock()

	if ok {
		entry.cancel()
	}

	return ok
}

// InFlight returns the number of admitted, unreleased traversals.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.inFlight)
}
