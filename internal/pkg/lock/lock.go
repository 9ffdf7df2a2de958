// Package lock provides per-key locking so that operations for the same
// player never interleave while different players proceed in parallel.
package lock

import (
	"sync"
)

// keyedMutex wraps a mutex with a reference count so idle entries can be dropped.
type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex hands out one mutex per key. Entries are created on demand and
// removed once nobody holds or waits for them.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyedMutex
}

// New creates an empty KeyedMutex.
func New[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{
		locks: make(map[K]*keyedMutex),
	}
}

// acquire returns the entry for key with its reference count bumped.
func (k *KeyedMutex[K]) acquire(key K) *keyedMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &keyedMutex{}
		k.locks[key] = m
	}
	m.refs++
	return m
}

// release drops a reference and forgets the entry when it is unused.
func (k *KeyedMutex[K]) release(key K, m *keyedMutex) {
	k.mu.Lock()
	defer k.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

// Lock blocks until the lock for key is held.
func (k *KeyedMutex[K]) Lock(key K) {
	m := k.acquire(key)
	m.mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held panics,
// like sync.Mutex.
func (k *KeyedMutex[K]) Unlock(key K) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key")
	}
	m.mu.Unlock()
	k.release(key, m)
}

// TryLock acquires the lock for key without blocking.
// Returns false if another holder has it.
func (k *KeyedMutex[K]) TryLock(key K) bool {
	m := k.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	k.release(key, m)
	return false
}

// WithLock runs fn while holding the lock for key.
func (k *KeyedMutex[K]) WithLock(key K, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held.
// This is a point-in-time check and may change immediately after.
func (k *KeyedMutex[K]) IsLocked(key K) bool {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		return false
	}
	if m.mu.TryLock() {
		m.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedMutex[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
