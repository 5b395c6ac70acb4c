package storage

import "sync"

// LockManager hands out exclusive per-key locks. All mutating chain
// operations hold their key's lock for the full duration of the call, so at
// most one mutation is in flight per key while different keys proceed fully
// in parallel.
//
// Locks are reference counted; a key's entry is dropped as soon as the last
// holder or waiter releases it, so the table stays proportional to the
// working set.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLockManager returns an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*keyLock),
	}
}

// Lock acquires the exclusive lock for key, blocking until it is available,
// and returns the release function. Callers must release on every exit path:
//
//	unlock := lm.Lock(key)
//	defer unlock()
func (lm *LockManager) Lock(key []byte) (unlock func()) {
	k := string(key)

	lm.mu.Lock()
	kl, ok := lm.locks[k]
	if !ok {
		kl = &keyLock{}
		lm.locks[k] = kl
	}
	kl.refs++
	lm.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()

			lm.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(lm.locks, k)
			}
			lm.mu.Unlock()
		})
	}
}
