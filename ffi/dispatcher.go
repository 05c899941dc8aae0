package ffi

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/nativebridge/capi"
	"github.com/chazu/nativebridge/vm"
)

// Dispatcher invokes native functions that take one word-sized argument
// and return one word-sized result.
type Dispatcher struct {
	log   commonlog.Logger
	calls atomic.Uint64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{log: logger()}
}

// Invoke calls fn with args and returns its raw result. Exactly one
// argument is accepted.
func (d *Dispatcher) Invoke(fn uintptr, args ...any) (uintptr, error) {
	if !nativeCalls {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}
	if fn == 0 {
		return 0, fmt.Errorf("ffi: invoke: null function: %w", capi.ErrUnsupportedOperation)
	}
	if len(args) != 1 {
		return 0, fmt.Errorf("ffi: invoke: expected 1 argument, got %d: %w", len(args), capi.ErrArity)
	}

	arg, err := toWord(args[0])
	if err != nil {
		return 0, err
	}

	d.calls.Add(1)
	r := call(fn, arg)
	d.log.Debugf("called %#x(%#x) = %#x", fn, arg, r)
	return r, nil
}

// Calls returns the number of native calls made.
func (d *Dispatcher) Calls() uint64 {
	return d.calls.Load()
}

// toWord converts a managed argument to a machine word.
func toWord(v any) (uintptr, error) {
	switch a := v.(type) {
	case int64:
		return uintptr(a), nil
	case int:
		return uintptr(a), nil
	case int32:
		return uintptr(a), nil
	case uint32:
		return uintptr(a), nil
	case uint64:
		return uintptr(a), nil
	case uintptr:
		return a, nil
	case bool:
		if a {
			return 1, nil
		}
		return 0, nil
	case capi.Pointer:
		return uintptr(a), nil
	case capi.Wrapper:
		if !a.IsNative() {
			return 0, fmt.Errorf("ffi: invoke: %T has no native pointer: %w", v, capi.ErrUnsupportedType)
		}
		return a.NativePointer(), nil
	case vm.Value:
		if a.IsSmallInt() {
			return uintptr(a.SmallInt()), nil
		}
	}
	return 0, fmt.Errorf("ffi: invoke: cannot pass %T: %w", v, capi.ErrUnsupportedType)
}
