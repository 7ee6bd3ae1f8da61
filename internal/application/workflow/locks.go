package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// caseLocks hands out one mutex per case id. Entries are dropped when the
// last holder releases them.
type caseLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*caseLock
}

type caseLock struct {
	sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[uuid.UUID]*caseLock)}
}

// Lock blocks until the case is free and returns the release func
func (l *caseLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &caseLock{}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.Lock()

	return func() {
		cl.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *caseLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
