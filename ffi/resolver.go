package ffi

import (
	"fmt"

	"github.com/chazu/nativebridge/capi"
)

// Decoder converts a native result word into a managed value.
// *capi.Context is a Decoder.
type Decoder interface {
	Decode(ptr uintptr) (any, error)
}

// NativeResolver resolves handles by calling a native function of the form
// `void *resolve(int64_t handle)` and decoding its result.
//
// NativeResolver is a comparable value: two resolvers with the same
// function, dispatcher and decoder are the same endpoint and share one
// handle cache.
type NativeResolver struct {
	Fn      uintptr
	Invoker *Dispatcher
	Decoder Decoder
}

// NewNativeResolver binds fn to a dispatcher and decoder.
func NewNativeResolver(fn uintptr, invoker *Dispatcher, decoder Decoder) NativeResolver {
	return NativeResolver{Fn: fn, Invoker: invoker, Decoder: decoder}
}

// ResolveHandle implements capi.Resolver.
func (r NativeResolver) ResolveHandle(handle int64) (any, error) {
	if r.Invoker == nil || r.Decoder == nil {
		return nil, fmt.Errorf("ffi: resolver %s is not bound: %w", r, capi.ErrUnsupportedOperation)
	}
	ptr, err := r.Invoker.Invoke(r.Fn, handle)
	if err != nil {
		return nil, err
	}
	return r.Decoder.Decode(ptr)
}

func (r NativeResolver) String() string {
	return fmt.Sprintf("native@%#x", r.Fn)
}
