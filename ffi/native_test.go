//go:build (darwin || linux) && (amd64 || arm64)

package ffi

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/ebitengine/purego"

	"github.com/chazu/nativebridge/capi"
	"github.com/chazu/nativebridge/vm"
)

// purego callbacks are a finite resource, so the test resolver is created
// once and driven through a shared table.
var (
	callbackOnce sync.Once
	callbackFn   uintptr

	callbackMu    sync.Mutex
	callbackTable map[int64]uintptr
	callbackCalls map[int64]int
)

func resolveCallback(handle int64) uintptr {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	callbackCalls[handle]++
	return callbackTable[handle]
}

// nativeResolverFn returns the callback address after resetting its table
// to table.
func nativeResolverFn(t *testing.T, table map[int64]uintptr) uintptr {
	t.Helper()
	callbackOnce.Do(func() {
		callbackFn = purego.NewCallback(resolveCallback)
	})

	callbackMu.Lock()
	callbackTable = table
	callbackCalls = make(map[int64]int)
	callbackMu.Unlock()
	return callbackFn
}

func callbackCount(handle int64) int {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	return callbackCalls[handle]
}

func TestInvokeCallback(t *testing.T) {
	fn := nativeResolverFn(t, map[int64]uintptr{3: 0x300})
	d := NewDispatcher()

	r, err := d.Invoke(fn, int64(3))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if r != 0x300 {
		t.Errorf("Expected 0x300, got %#x", r)
	}
	if d.Calls() != 1 || callbackCount(3) != 1 {
		t.Errorf("Expected 1 call, got dispatcher=%d native=%d", d.Calls(), callbackCount(3))
	}
}

func TestInvokeRejects(t *testing.T) {
	fn := nativeResolverFn(t, nil)
	d := NewDispatcher()

	if _, err := d.Invoke(0, int64(1)); !errors.Is(err, capi.ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation for null function, got %v", err)
	}
	if _, err := d.Invoke(fn); !errors.Is(err, capi.ErrArity) {
		t.Errorf("Expected ErrArity for no arguments, got %v", err)
	}
	if _, err := d.Invoke(fn, 1, 2); !errors.Is(err, capi.ErrArity) {
		t.Errorf("Expected ErrArity for two arguments, got %v", err)
	}
	if _, err := d.Invoke(fn, "handle"); !errors.Is(err, capi.ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType, got %v", err)
	}
	if d.Calls() != 0 {
		t.Errorf("Expected no native calls, got %d", d.Calls())
	}
}

func TestNativeResolverThroughHandleCache(t *testing.T) {
	ctx := capi.NewContext(capi.Options{CacheSize: 3})

	objects := make([]*vm.Object, 5)
	table := make(map[int64]uintptr)
	for i := range objects {
		objects[i] = vm.NewObject(vm.NewClass("Resource", nil))
		w := capi.Wrap(objects[i])
		if _, err := ctx.EnsurePointerForm(w); err != nil {
			t.Fatalf("EnsurePointerForm: %v", err)
		}
		table[int64(i)] = w.NativePointer()
	}
	fn := nativeResolverFn(t, table)
	r := NewNativeResolver(fn, NewDispatcher(), ctx)

	for _, h := range []int64{0, 1, 2, 0, 1, 2} {
		v, err := ctx.Resolve(r, h)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", h, err)
		}
		if v != objects[h] {
			t.Errorf("Resolve(%d) = %v, want object %d", h, v, h)
		}
	}
	for h := int64(0); h < 3; h++ {
		if callbackCount(h) != 1 {
			t.Errorf("Expected one native call for handle %d, got %d", h, callbackCount(h))
		}
	}

	// A fourth handle evicts the oldest entry
	ctx.Resolve(r, 3)
	ctx.Resolve(r, 0)
	if callbackCount(0) != 2 {
		t.Errorf("Expected handle 0 to be re-resolved after eviction, got %d calls", callbackCount(0))
	}

	// Handles with no mapping decode to the NULL sentinel
	v, err := ctx.Resolve(r, 99)
	if err != nil || v != ctx.Null() {
		t.Errorf("Expected NULL sentinel for unmapped handle, got %v, %v", v, err)
	}

	runtime.KeepAlive(objects)
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open("nativebridge-does-not-exist", []string{t.TempDir()})
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("Expected ErrLibraryNotFound, got %v", err)
	}
}

func TestOpenSystemLibrary(t *testing.T) {
	name := "libc.so.6"
	if runtime.GOOS == "darwin" {
		name = "/usr/lib/libSystem.B.dylib"
	}

	lib, err := Open(name, nil)
	if err != nil {
		t.Skipf("system C library not loadable: %v", err)
	}

	if lib.Name() != name || lib.Path() == "" {
		t.Errorf("Unexpected library identity %q at %q", lib.Name(), lib.Path())
	}
	if addr, err := lib.Symbol("getpid"); err != nil || addr == 0 {
		t.Errorf("Expected getpid symbol, got %#x, %v", addr, err)
	}
	if _, err := lib.Symbol("nativebridge_no_such_symbol"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Expected ErrSymbolNotFound, got %v", err)
	}

	if err := lib.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if _, err := lib.Symbol("getpid"); !errors.Is(err, ErrLibraryClosed) {
		t.Errorf("Expected ErrLibraryClosed, got %v", err)
	}
}
