// Package game holds the pieces shared by the quiz engines: the session
// registry, the idle reaper and the error taxonomy.
package game

import (
	"errors"
	"sync"
)

// ErrExists is returned by Create when the key is already registered.
var ErrExists = errors.New("already registered")

// Registry maps game or session identifiers to live instances.
// It is the only place instances are created, looked up or destroyed.
// Each engine owns its own Registry; there is no package-level instance.
type Registry[K comparable, V any] struct {
	items map[K]V
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		items: make(map[K]V),
	}
}

// Create registers v under key. It fails with ErrExists if the key is taken.
func (r *Registry[K, V]) Create(key K, v V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key]; ok {
		return ErrExists
	}
	r.items[key] = v
	return nil
}

// Put registers v under key, replacing any previous instance.
func (r *Registry[K, V]) Put(key K, v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = v
}

// Get retrieves the instance registered under key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// Delete removes key. Returns true if an instance was removed.
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key]; ok {
		delete(r.items, key)
		return true
	}
	return false
}

// CompareAndDelete removes key only while it still maps to v.
// match reports whether the stored instance is v.
func (r *Registry[K, V]) CompareAndDelete(key K, match func(V) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.items[key]; ok && match(cur) {
		delete(r.items, key)
		return true
	}
	return false
}

// Keys returns a copy of the registered keys.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of registered instances.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
