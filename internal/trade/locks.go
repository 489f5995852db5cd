package trade

import "sync"

// userLocks serializes order execution per user id, so two concurrent
// orders for the same user cannot both read the same pre-mutation snapshot
// and double-spend cash or shares. Locks are created lazily and never
// reclaimed; the population is bounded by the user count.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id and returns the unlock function.
func (l *userLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
