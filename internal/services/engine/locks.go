package engine

import "sync"

// keyedMutex hands out one mutex per auction so that every mutation in
// this process runs as if against a single-writer queue. Entries are
// ref-counted and removed when the last holder leaves, no matter how
// many callers pile up on the same auction.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	refCnt int
	mu     sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the key's mutex is held and returns the matching
// unlock. Calling the unlock more than once is a no-op.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &lockEntry{}
		km.locks[key] = e
	}
	e.refCnt++
	km.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			km.mu.Lock()
			e.refCnt--
			if e.refCnt == 0 {
				delete(km.locks, key)
			}
			km.mu.Unlock()
		})
	}
}
