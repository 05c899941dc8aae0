package capi

import (
	"errors"
	"testing"

	"github.com/chazu/nativebridge/vm"
)

func TestToNativeIdentity(t *testing.T) {
	ctx := NewContext(Options{})
	obj := newPoint()
	class := vm.NewClass("Thing", nil)

	tests := []struct {
		name string
		v    any
	}{
		{"object", obj},
		{"class", class},
		{"nil", vm.Nil},
		{"true", vm.True},
		{"false", vm.False},
		{"small int value", vm.FromSmallInt(256)},
		{"small go int", -5},
		{"small int64", int64(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w1, err := ctx.ToNative(tt.v)
			if err != nil {
				t.Fatalf("ToNative: %v", err)
			}
			w2, _ := ctx.ToNative(tt.v)
			if w1 != w2 {
				t.Error("Expected the same wrapper on repeated conversion")
			}
		})
	}
}

func TestToNativeSmallIntSharing(t *testing.T) {
	ctx := NewContext(Options{})

	a, _ := ctx.ToNative(7)
	b, _ := ctx.ToNative(vm.FromSmallInt(7))
	c, _ := ctx.ToNative(int64(7))
	if a != b || b != c {
		t.Error("Expected all forms of 7 to share one wrapper")
	}

	big1, _ := ctx.ToNative(257)
	big2, _ := ctx.ToNative(257)
	if big1 == big2 {
		t.Error("Expected integers outside the small range to get fresh wrappers")
	}
	if ctx.FromNative(big1) != vm.FromSmallInt(257) {
		t.Errorf("Expected delegate 257, got %v", ctx.FromNative(big1))
	}

	if _, err := ctx.ToNative(int64(1) << 60); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType for out-of-range integer, got %v", err)
	}
}

func TestToNativeSingletonsPerContext(t *testing.T) {
	ctx1 := NewContext(Options{})
	ctx2 := NewContext(Options{})

	n1, _ := ctx1.ToNative(vm.Nil)
	n2, _ := ctx2.ToNative(vm.Nil)
	if n1 == n2 {
		t.Error("Expected each context to own its singleton wrappers")
	}
	if ctx1.ID() == ctx2.ID() {
		t.Error("Expected distinct context IDs")
	}
	if ctx1.Null() == ctx2.Null() {
		t.Error("Expected distinct NULL sentinels")
	}

	tw, _ := ctx1.ToNative(vm.True)
	fw, _ := ctx1.ToNative(vm.False)
	if tw == fw || tw == n1 {
		t.Error("Expected distinct wrappers for nil, true and false")
	}
}

func TestToNativeGoScalars(t *testing.T) {
	ctx := NewContext(Options{})

	tw, _ := ctx.ToNative(true)
	if mt, _ := ctx.ToNative(vm.True); tw != mt {
		t.Error("Expected Go true to share the managed true wrapper")
	}
	fw, _ := ctx.ToNative(false)
	if mf, _ := ctx.ToNative(vm.False); fw != mf {
		t.Error("Expected Go false to share the managed false wrapper")
	}
	if !IsSpecialSingleton(tw) || !IsSpecialSingleton(fw) {
		t.Error("Expected boolean wrappers to be special singletons")
	}

	f1, err := ctx.ToNative(2.5)
	if err != nil {
		t.Fatalf("ToNative(2.5): %v", err)
	}
	f2, _ := ctx.ToNative(2.5)
	if f1 == f2 {
		t.Error("Expected floats to get fresh wrappers")
	}
	if got := ctx.FromNative(f1); got != vm.FromFloat64(2.5) {
		t.Errorf("Expected delegate 2.5, got %v", got)
	}
}

func TestToNativeGoNil(t *testing.T) {
	ctx := NewContext(Options{})

	for _, v := range []any{nil, (*vm.Object)(nil), (*vm.Class)(nil)} {
		w, err := ctx.ToNative(v)
		if err != nil {
			t.Fatalf("ToNative(%v): %v", v, err)
		}
		if w != ctx.Null() {
			t.Errorf("Expected NULL sentinel for %T, got %v", v, w)
		}
	}
}

func TestToNativeRejectsWrappers(t *testing.T) {
	ctx := NewContext(Options{})
	w := Wrap(newPoint())

	expectViolation(t, func() { ctx.ToNative(w) })
	expectViolation(t, func() { ctx.ToNative(ctx.Null()) })
	expectViolation(t, func() { ctx.ToNative(WrapClass(vm.NewClass("C", nil), "C")) })
	expectViolation(t, func() { ctx.ToNative(NewVarArgsMethod(nil)) })
}

func TestToNativeUnsupported(t *testing.T) {
	ctx := NewContext(Options{})
	if _, err := ctx.ToNative("a string"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType, got %v", err)
	}
}

func TestFromNative(t *testing.T) {
	ctx := NewContext(Options{})
	obj := newPoint()
	class := vm.NewClass("Thing", nil)
	method := func() {}

	ow, _ := ctx.ToNative(obj)
	cw, _ := ctx.ToNative(class)
	mw := NewVarArgsMethod(obj)

	if ctx.FromNative(ow) != obj {
		t.Error("Expected object back")
	}
	if ctx.FromNative(cw) != class {
		t.Error("Expected class back")
	}
	if ctx.FromNative(mw) != obj {
		t.Error("Expected method delegate back")
	}
	if ctx.FromNative(ctx.Null()) != ctx.Null() {
		t.Error("Expected NULL sentinel to map to itself")
	}
	if NewVarArgsMethod(method).Method() == nil {
		t.Error("Expected method to be retained")
	}
}

func TestMaterializeLookupAndRelease(t *testing.T) {
	ctx := NewContext(Options{})
	obj := newPoint()
	w := Wrap(obj)

	if _, err := ctx.EnsurePointerForm(w); err != nil {
		t.Fatalf("EnsurePointerForm: %v", err)
	}
	ptr := w.NativePointer()
	if ptr == 0 {
		t.Fatal("Expected a native pointer")
	}

	if ctx.Lookup(ptr) != w {
		t.Error("Expected Lookup to return the wrapper")
	}
	v, err := ctx.Decode(ptr)
	if err != nil || v != obj {
		t.Errorf("Expected Decode to return the object, got %v, %v", v, err)
	}
	if s := ctx.Stats(); s.Handles != 1 || s.Materialized != 1 {
		t.Errorf("Unexpected stats: %+v", s)
	}

	ctx.Release(w)
	if w.IsNative() {
		t.Error("Expected wrapper to be non-native after Release")
	}
	if ctx.Lookup(ptr) != nil {
		t.Error("Expected released pointer to be unknown")
	}
	if _, err := ctx.Decode(ptr); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType for released pointer, got %v", err)
	}

	// Re-materializing issues a fresh pointer
	ctx.EnsurePointerForm(w)
	if w.NativePointer() == 0 || w.NativePointer() == ptr {
		t.Errorf("Expected a new pointer, got %#x", w.NativePointer())
	}

	// Releasing a non-native wrapper is a no-op
	ctx.Release(Wrap(newPoint()))
}

func TestZeroValueWrappers(t *testing.T) {
	ctx := NewContext(Options{})

	var null NullSentinel
	var cw ClassWrapper
	var m ForeignMethod
	var w NativeWrapper

	tests := []struct {
		name string
		w    Wrapper
	}{
		{"null", &null},
		{"class", &cw},
		{"method", &m},
		{"placeholder", &w},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.w.IsNative() || tt.w.NativePointer() != 0 {
				t.Fatal("Expected zero value to be non-native")
			}
			if _, err := ctx.EnsurePointerForm(tt.w); err != nil {
				t.Fatalf("EnsurePointerForm: %v", err)
			}
			ptr := tt.w.NativePointer()
			if ptr == 0 {
				t.Fatal("Expected a native pointer")
			}
			if got := ctx.Lookup(ptr); got != tt.w {
				t.Errorf("Expected Lookup to return the %s wrapper, got %T", tt.name, got)
			}
			expectViolation(t, func() { tt.w.SetNativePointer(ptr + 1) })
		})
	}

	if cw.Class() != nil || cw.Name() != "" {
		t.Errorf("Expected no class and empty name, got %v, %q", cw.Class(), cw.Name())
	}
	if buf := cw.NameBuffer(); len(buf) != 1 || buf[0] != 0 {
		t.Errorf("Expected a lone NUL, got %v", buf)
	}
	if _, err := cw.Proc("tp_name"); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("Expected ErrUnknownIdentifier, got %v", err)
	}
	if null.String() != "NULL" {
		t.Errorf("Expected NULL, got %q", null.String())
	}
}

func TestLookupReturnsOuterWrapper(t *testing.T) {
	ctx := NewContext(Options{})
	cw := WrapClass(vm.NewClass("Widget", nil), "Widget")
	m := NewVarArgsMethod("callable")

	for _, w := range []Wrapper{cw, m} {
		if _, err := ctx.EnsurePointerForm(w); err != nil {
			t.Fatalf("EnsurePointerForm: %v", err)
		}
		if got := ctx.Lookup(w.NativePointer()); got != w {
			t.Errorf("Expected Lookup to return %T, got %T", w, got)
		}
	}
	if v, _ := ctx.Decode(cw.NativePointer()); v != cw.Class() {
		t.Errorf("Expected Decode to return the class, got %v", v)
	}
}

func TestDecodeNull(t *testing.T) {
	ctx := NewContext(Options{})

	v, err := ctx.Decode(0)
	if err != nil || v != ctx.Null() {
		t.Errorf("Expected NULL sentinel for pointer 0, got %v, %v", v, err)
	}

	ctx.EnsurePointerForm(ctx.Null())
	v, err = ctx.Decode(ctx.Null().NativePointer())
	if err != nil || v != ctx.Null() {
		t.Errorf("Expected NULL sentinel for its own pointer, got %v, %v", v, err)
	}
}

func TestContextResolve(t *testing.T) {
	ctx := NewContext(Options{CacheSize: 2})
	r := newCountingResolver("r")

	ctx.Resolve(r, 1)
	ctx.Resolve(r, 1)
	if r.calls[1] != 1 {
		t.Errorf("Expected 1 resolver call, got %d", r.calls[1])
	}
	if ctx.HandleCache(r).Capacity() != 2 {
		t.Errorf("Expected capacity 2, got %d", ctx.HandleCache(r).Capacity())
	}

	s := ctx.Stats()
	if len(s.Caches) != 1 || s.Caches[0].Hits != 1 || s.Caches[0].Misses != 1 {
		t.Errorf("Unexpected cache stats: %+v", s.Caches)
	}
	if s.ContextID != ctx.ID().String() {
		t.Errorf("Expected context id %s, got %s", ctx.ID(), s.ContextID)
	}
}

func TestReadClassMembers(t *testing.T) {
	ctx := NewContext(Options{})
	class := vm.NewClass("Bytes", nil)
	cw := WrapClass(class, "bytes")

	// Unset procs read as the NULL sentinel, never as Go nil
	v, err := ctx.Read(cw, KeyGetBuffer)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != ctx.Null() {
		t.Errorf("Expected NULL sentinel for unset proc, got %v", v)
	}

	cw.SetReleaseBufferProc(0x77)
	v, _ = ctx.Read(cw, KeyReleaseBuffer)
	if v != BufferProc(0x77) {
		t.Errorf("Expected release proc 0x77, got %v", v)
	}
	v, _ = ctx.Read(cw, KeyGetBuffer)
	if v != ctx.Null() {
		t.Errorf("Expected get proc still NULL, got %v", v)
	}

	v, err = ctx.ReadClass(class, KeyReleaseBuffer)
	if err != nil || v != BufferProc(0x77) {
		t.Errorf("Expected ReadClass to see the wrapper, got %v, %v", v, err)
	}
}

func TestDefineClass(t *testing.T) {
	ctx := NewContext(Options{})
	base := vm.NewClass("Buffer", nil, "data")
	base.Namespace = "io"

	cw := ctx.DefineClass(base, "")
	if cw.Name() != "io::Buffer" {
		t.Errorf("Expected default display name io::Buffer, got %q", cw.Name())
	}
	if ctx.DefineClass(base, "other") != cw {
		t.Error("Expected redefining the same class to keep its wrapper")
	}
	if ctx.Classes().Lookup("io::Buffer") != base {
		t.Error("Expected class to be registered under its full name")
	}

	cw.SetGetBufferProc(0x42)
	v, err := ctx.ReadClassNamed("io::Buffer", KeyGetBuffer)
	if err != nil || v != BufferProc(0x42) {
		t.Errorf("Expected get proc 0x42, got %v, %v", v, err)
	}
	if _, err := ctx.ReadClassNamed("Buffer", KeyGetBuffer); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("Expected ErrUnknownIdentifier for unqualified name, got %v", err)
	}

	// A replacement class gets its own wrapper; the registry follows it
	replacement := vm.NewClass("Buffer", nil)
	replacement.Namespace = "io"
	rw := ctx.DefineClass(replacement, "io.Buffer")
	if rw == cw {
		t.Error("Expected a distinct wrapper for the replacement class")
	}
	if v, _ := ctx.ReadClassNamed("io::Buffer", KeyGetBuffer); v != ctx.Null() {
		t.Errorf("Expected NULL proc on the replacement class, got %v", v)
	}
	if s := ctx.Stats(); s.Classes != 1 {
		t.Errorf("Expected 1 class, got %d", s.Classes)
	}

	expectViolation(t, func() { ctx.DefineClass(nil, "x") })
}

func TestReadUnknownKeyLeavesCachesAlone(t *testing.T) {
	ctx := NewContext(Options{})
	r := newCountingResolver("r")
	ctx.Resolve(r, 1)
	before := ctx.Stats()

	cw := WrapClass(vm.NewClass("K", nil), "K")
	_, err := ctx.Read(cw, "bf_foobar")
	if !errors.Is(err, ErrUnknownIdentifier) {
		t.Fatalf("Expected ErrUnknownIdentifier, got %v", err)
	}
	var ie *InteropError
	if !errors.As(err, &ie) || ie.Op != "read" {
		t.Errorf("Expected *InteropError for read, got %#v", err)
	}

	after := ctx.Stats()
	if len(after.Caches) != len(before.Caches) || after.Caches[0] != before.Caches[0] {
		t.Errorf("Expected cache state unchanged, before %+v after %+v", before.Caches, after.Caches)
	}
}

func TestReadClassWithoutWrapper(t *testing.T) {
	ctx := NewContext(Options{})
	class := vm.NewClass("Unwrapped", nil)

	_, err := ctx.ReadClass(class, KeyGetBuffer)
	if !errors.Is(err, ErrNoClassWrapper) {
		t.Fatalf("Expected ErrNoClassWrapper, got %v", err)
	}
	if class.Native().IsSet() {
		t.Error("Expected ReadClass not to create a wrapper")
	}
}

func TestReadAndExecuteDispatch(t *testing.T) {
	ctx := NewContext(Options{})
	cache := ctx.HandleCache(newCountingResolver("r"))

	tests := []struct {
		name       string
		v          any
		readErr    error
		executeErr error
	}{
		{"object wrapper", Wrap(newPoint()), ErrUnsupportedOperation, ErrUnsupportedOperation},
		{"class wrapper", WrapClass(vm.NewClass("X", nil), "X"), nil, ErrUnsupportedOperation},
		{"method", NewVarArgsKeywordsMethod(nil), ErrUnsupportedOperation, ErrUnsupportedOperation},
		{"null", ctx.Null(), ErrUnsupportedOperation, ErrUnsupportedOperation},
		{"cache", cache, ErrUnsupportedOperation, nil},
		{"plain value", 3, ErrUnsupportedType, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ctx.Read(tt.v, KeyGetBuffer); !errors.Is(err, tt.readErr) {
				t.Errorf("Read error = %v, want %v", err, tt.readErr)
			}
			if _, err := ctx.Execute(tt.v, []any{int64(1)}); !errors.Is(err, tt.executeErr) {
				t.Errorf("Execute error = %v, want %v", err, tt.executeErr)
			}
		})
	}

	if _, err := ctx.Execute(cache, []any{1, 2}); !errors.Is(err, ErrArity) {
		t.Errorf("Expected ErrArity, got %v", err)
	}
}
