package capi

import (
	"fmt"

	"github.com/chazu/nativebridge/vm"
)

// Wrapper is the native-visible identity of a managed value. The set of
// implementations is closed: *NativeWrapper, *ClassWrapper, *ForeignMethod
// and *NullSentinel.
type Wrapper interface {
	// IsNative returns true once a non-zero native pointer has been recorded.
	IsNative() bool

	// NativePointer returns the recorded pointer, or 0.
	NativePointer() uintptr

	// SetNativePointer records p. Repeating the current pointer or clearing
	// it with 0 is allowed; replacing one non-zero pointer with a different
	// one panics with a *ContractViolation.
	SetNativePointer(p uintptr)

	state() *nativeState
}

// Delegate is a managed object able to cache its own wrapper.
type Delegate interface {
	Native() *vm.NativeSlot
}

// nativeState is the pointer half of a wrapper. It is allocated separately
// so the handle table can hold it weakly without pinning the wrapper.
type nativeState struct {
	pointer uintptr
	owner   Wrapper
}

// lazyState returns *s, allocating it for owner on first use so that zero
// value wrappers are usable.
func lazyState(s **nativeState, owner Wrapper) *nativeState {
	if *s == nil {
		*s = &nativeState{owner: owner}
	}
	return *s
}

func (s *nativeState) set(p uintptr) {
	if s.pointer != 0 && p != 0 && p != s.pointer {
		violate("%s already has native pointer %#x, refusing %#x", describe(s.owner), s.pointer, p)
	}
	s.pointer = p
}

// ---------------------------------------------------------------------------
// NativeWrapper
// ---------------------------------------------------------------------------

// NativeWrapper associates one managed object with an optional native pointer.
//
// The zero value is a placeholder wrapper with no delegate; SetDelegate may
// bind it exactly once.
type NativeWrapper struct {
	delegate any
	native   *nativeState
}

func newNativeWrapper(delegate any) *NativeWrapper {
	w := &NativeWrapper{delegate: delegate}
	w.native = &nativeState{owner: w}
	return w
}

// Wrap returns the unique wrapper for d, creating and caching it on d the
// first time. Classes have class wrappers only: passing a *vm.Class panics,
// use WrapClass or Context.ToNative instead.
func Wrap(d Delegate) *NativeWrapper {
	if c, ok := d.(*vm.Class); ok {
		violate("class %s must be wrapped with WrapClass", c.FullName())
	}

	slot := d.Native()
	if w, ok := slot.Load().(*NativeWrapper); ok {
		return w
	}
	actual, _ := slot.StoreIfAbsent(newNativeWrapper(d))
	w, ok := actual.(*NativeWrapper)
	if !ok {
		violate("native slot of %T holds %T", d, actual)
	}
	return w
}

// Delegate returns the wrapped managed value, or nil for a placeholder.
func (w *NativeWrapper) Delegate() any {
	return w.delegate
}

// SetDelegate binds a placeholder wrapper to its managed value.
// Panics if the wrapper already has a delegate.
func (w *NativeWrapper) SetDelegate(d any) {
	if w.delegate != nil {
		violate("%s already has a delegate", describe(w))
	}
	w.delegate = d
}

// IsNative returns true once a non-zero native pointer has been recorded.
func (w *NativeWrapper) IsNative() bool {
	return w.state().pointer != 0
}

// NativePointer returns the recorded pointer, or 0.
func (w *NativeWrapper) NativePointer() uintptr {
	return w.state().pointer
}

// SetNativePointer records the wrapper's native pointer.
func (w *NativeWrapper) SetNativePointer(p uintptr) {
	w.state().set(p)
}

func (w *NativeWrapper) state() *nativeState {
	return lazyState(&w.native, w)
}

func (w *NativeWrapper) String() string {
	return fmt.Sprintf("NativeWrapper(%s)", describeDelegate(w.delegate))
}

func describe(w Wrapper) string {
	if s, ok := w.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", w)
}

func describeDelegate(d any) string {
	switch x := d.(type) {
	case nil:
		return "<placeholder>"
	case vm.Value:
		return x.String()
	case *vm.Class:
		return x.FullName()
	case *vm.Object:
		if x.Class() != nil {
			return "a " + x.Class().Name
		}
		return "an object"
	default:
		return fmt.Sprintf("%T", d)
	}
}
