// SPDX-License-Identifier: MPL-2.0

package workspace

import "sync"

type (
	// keyedMutex serializes work per key. Entries are dropped once no holder
	// or waiter remains, so the map does not grow with every label ever staged.
	keyedMutex struct {
		mu    sync.Mutex
		locks map[string]*refLock
	}

	refLock struct {
		mu   sync.Mutex
		refs int
	}
)

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size returns the number of live entries.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
