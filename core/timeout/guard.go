package timeout

import "sync"

// Guard serialises work per conversation id. Different ids never contend.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*guardEntry
}

type guardEntry struct {
	mu   sync.Mutex
	refs int
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*guardEntry)}
}

// Lock acquires the lock for id and returns its release function.
func (g *Guard) Lock(id string) (unlock func()) {
	g.mu.Lock()
	e, ok := g.locks[id]
	if !ok {
		e = &guardEntry{}
		g.locks[id] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		g.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

// Len reports how many ids currently hold or wait for a lock.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
