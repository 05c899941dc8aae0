package capi

import "github.com/chazu/nativebridge/vm"

// Small integers in [SmallIntMin, SmallIntMax) share one wrapper per value.
const (
	SmallIntMin = -5
	SmallIntMax = 257
)

// IsSmallInteger reports whether i is in the interned small-integer range.
func IsSmallInteger(i int64) bool {
	return i >= SmallIntMin && i < SmallIntMax
}

// IsNativeWrapper reports whether v is a wrapper of a managed value
// (NativeWrapper, ClassWrapper or ForeignMethod).
func IsNativeWrapper(v any) bool {
	switch v.(type) {
	case *NativeWrapper, *ClassWrapper, *ForeignMethod:
		return true
	}
	return false
}

// IsNullSentinel reports whether v is a NullSentinel.
func IsNullSentinel(v any) bool {
	_, ok := v.(*NullSentinel)
	return ok
}

// IsSpecialSingleton reports whether v is nil, true or false, either as a
// managed value or as the wrapper of one.
func IsSpecialSingleton(v any) bool {
	switch x := v.(type) {
	case vm.Value:
		return x.IsNil() || x.IsBool()
	case *NativeWrapper:
		d, ok := x.delegate.(vm.Value)
		return ok && (d.IsNil() || d.IsBool())
	}
	return false
}

// IsInstanceOf reports whether v is an object of class c or one of its
// subclasses, either directly or as the wrapper of one.
func IsInstanceOf(v any, c *vm.Class) bool {
	if w, ok := v.(*NativeWrapper); ok {
		v = w.delegate
	}
	obj, ok := v.(*vm.Object)
	return ok && obj != nil && obj.Class() != nil && obj.Class().IsSubclassOf(c)
}
