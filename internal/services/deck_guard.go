package services

import "sync"

// deckGuards hands out one mutex per deck id. Entries are dropped once no
// caller holds or waits on them.
type deckGuards struct {
	mu    sync.Mutex
	locks map[string]*deckGuard
}

type deckGuard struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until deckID is free and returns the matching unlock. Calling
// unlock more than once is a no-op.
func (g *deckGuards) lock(deckID string) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = make(map[string]*deckGuard)
	}
	dg, ok := g.locks[deckID]
	if !ok {
		dg = &deckGuard{}
		g.locks[deckID] = dg
	}
	dg.refs++
	g.mu.Unlock()

	dg.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			dg.mu.Unlock()
			g.mu.Lock()
			dg.refs--
			if dg.refs == 0 {
				delete(g.locks, deckID)
			}
			g.mu.Unlock()
		})
	}
}
