package vm

import "sync/atomic"

// NativeSlot holds the native-visible wrapper for a managed object.
//
// The slot is written by the bridging layer only; the object model treats
// the stored value as opaque. Stores are construct-if-absent: the first
// wrapper published wins and later candidates are discarded.
type NativeSlot struct {
	p atomic.Pointer[nativeRef]
}

type nativeRef struct {
	v any
}

// Load returns the cached wrapper, or nil if none has been published.
func (s *NativeSlot) Load() any {
	if r := s.p.Load(); r != nil {
		return r.v
	}
	return nil
}

// StoreIfAbsent publishes v unless a wrapper is already cached.
// It returns the wrapper that ended up in the slot and whether it was v.
func (s *NativeSlot) StoreIfAbsent(v any) (actual any, stored bool) {
	ref := &nativeRef{v: v}
	if s.p.CompareAndSwap(nil, ref) {
		return v, true
	}
	return s.p.Load().v, false
}

// IsSet returns true if a wrapper has been published.
func (s *NativeSlot) IsSet() bool {
	return s.p.Load() != nil
}
