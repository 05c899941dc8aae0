package capi

// NullSentinel is the foreign-visible absence of a value. Each Context owns
// exactly one. Like any wrapper it can be materialized to a native pointer,
// and that pointer is set at most once. The zero value is usable.
type NullSentinel struct {
	native *nativeState
}

func newNullSentinel() *NullSentinel {
	return &NullSentinel{}
}

// IsNative returns true once the sentinel has a native form.
func (n *NullSentinel) IsNative() bool {
	return n.state().pointer != 0
}

// NativePointer returns the sentinel's native form, or 0.
func (n *NullSentinel) NativePointer() uintptr {
	return n.state().pointer
}

// SetNativePointer records the sentinel's native form.
func (n *NullSentinel) SetNativePointer(p uintptr) {
	n.state().set(p)
}

func (n *NullSentinel) state() *nativeState {
	return lazyState(&n.native, n)
}

func (n *NullSentinel) String() string {
	return "NULL"
}
