// Package handles provides a thread-safe handle table for values that need to
// be referenced from native code.
//
// Native code cannot hold Go pointers, so a value is registered and the
// returned uintptr handle is what crosses the boundary. The table holds its
// values weakly: registering a value never extends its lifetime, and the
// entry is dropped automatically once the value has been collected.
package handles

import (
	"runtime"
	"sync"
	"weak"
)

type entry[T any] struct {
	ref     weak.Pointer[T]
	cleanup runtime.Cleanup
}

// Table maps handles to weakly held values of type T.
type Table[T any] struct {
	mu      sync.RWMutex
	entries map[uintptr]entry[T]
	nextID  uintptr
}

// New creates an empty table. Handle 0 is never issued.
func New[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[uintptr]entry[T]),
		nextID:  1,
	}
}

// Register stores v and returns a handle ID.
// The handle can be safely stored in native memory (as uintptr or void*).
//
// Thread-safe.
func (t *Table[T]) Register(v *T) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.entries[id] = entry[T]{
		ref:     weak.Make(v),
		cleanup: runtime.AddCleanup(v, t.drop, id),
	}
	return id
}

// Lookup retrieves a value by its handle ID.
// Returns nil if the handle is not registered or the value was collected.
//
// Thread-safe.
func (t *Table[T]) Lookup(id uintptr) *T {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.ref.Value()
}

// Unregister removes a handle. Unknown handles are ignored.
//
// Thread-safe.
func (t *Table[T]) Unregister(id uintptr) {
	t.mu.Lock()
	e, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()
	if ok {
		e.cleanup.Stop()
	}
}

// Count returns the number of currently registered handles.
// Useful for debugging and testing leaks.
//
// Thread-safe.
func (t *Table[T]) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table[T]) drop(id uintptr) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}
