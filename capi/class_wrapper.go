package capi

import (
	"fmt"

	"github.com/chazu/nativebridge/vm"
)

// Symbolic keys readable from a ClassWrapper.
const (
	KeyGetBuffer     = "bf_getbuffer"
	KeyReleaseBuffer = "bf_releasebuffer"
)

// BufferProc is a native function pointer implementing one half of the
// buffer protocol.
type BufferProc uintptr

// NoProc marks an unset buffer procedure.
const NoProc BufferProc = 0

// ClassWrapper is the native identity of a managed class. Besides the
// pointer it caches the native-struct fields foreign code reads directly:
// the class name and the two buffer-protocol procedures.
//
// The zero value has no class and an empty name; WrapClass is the way to
// obtain the wrapper of a class.
type ClassWrapper struct {
	NativeWrapper

	name          []byte // NUL-terminated, never mutated
	getBuffer     BufferProc
	releaseBuffer BufferProc
}

func newClassWrapper(c *vm.Class, displayName string) *ClassWrapper {
	cw := &ClassWrapper{
		name: append([]byte(displayName), 0),
	}
	cw.delegate = c
	return cw
}

// WrapClass returns the unique wrapper for c. The display name is only
// used when the wrapper is first created; later calls with a different
// name return the existing wrapper unchanged.
func WrapClass(c *vm.Class, displayName string) *ClassWrapper {
	slot := c.Native()
	if cw, ok := slot.Load().(*ClassWrapper); ok {
		return cw
	}
	actual, _ := slot.StoreIfAbsent(newClassWrapper(c, displayName))
	cw, ok := actual.(*ClassWrapper)
	if !ok {
		violate("native slot of class %s holds %T", c.FullName(), actual)
	}
	return cw
}

// Class returns the wrapped class, or nil for the zero value.
func (cw *ClassWrapper) Class() *vm.Class {
	c, _ := cw.delegate.(*vm.Class)
	return c
}

// Name returns the display name the wrapper was created with.
func (cw *ClassWrapper) Name() string {
	if len(cw.name) == 0 {
		return ""
	}
	return string(cw.name[:len(cw.name)-1])
}

// NameBuffer returns the NUL-terminated name as foreign code sees it.
// The returned slice must not be modified.
func (cw *ClassWrapper) NameBuffer() []byte {
	if len(cw.name) == 0 {
		return []byte{0}
	}
	return cw.name
}

// IsNative returns true once a non-zero native pointer has been recorded.
func (cw *ClassWrapper) IsNative() bool {
	return cw.state().pointer != 0
}

// NativePointer returns the recorded pointer, or 0.
func (cw *ClassWrapper) NativePointer() uintptr {
	return cw.state().pointer
}

// SetNativePointer records the class wrapper's native pointer.
func (cw *ClassWrapper) SetNativePointer(p uintptr) {
	cw.state().set(p)
}

func (cw *ClassWrapper) state() *nativeState {
	return lazyState(&cw.native, cw)
}

// GetBufferProc returns the bf_getbuffer procedure, or NoProc.
func (cw *ClassWrapper) GetBufferProc() BufferProc {
	return cw.getBuffer
}

// SetGetBufferProc sets the bf_getbuffer procedure. NoProc clears it.
func (cw *ClassWrapper) SetGetBufferProc(p BufferProc) {
	cw.getBuffer = p
}

// ReleaseBufferProc returns the bf_releasebuffer procedure, or NoProc.
func (cw *ClassWrapper) ReleaseBufferProc() BufferProc {
	return cw.releaseBuffer
}

// SetReleaseBufferProc sets the bf_releasebuffer procedure. NoProc clears it.
func (cw *ClassWrapper) SetReleaseBufferProc(p BufferProc) {
	cw.releaseBuffer = p
}

// Proc looks up a buffer procedure by its symbolic key. Any key other than
// KeyGetBuffer and KeyReleaseBuffer fails with ErrUnknownIdentifier.
func (cw *ClassWrapper) Proc(key string) (BufferProc, error) {
	switch key {
	case KeyGetBuffer:
		return cw.getBuffer, nil
	case KeyReleaseBuffer:
		return cw.releaseBuffer, nil
	default:
		return NoProc, interopErrorf("read", ErrUnknownIdentifier, "%q on class %s", key, cw.Name())
	}
}

func (cw *ClassWrapper) String() string {
	return fmt.Sprintf("ClassWrapper(%s)", cw.Name())
}
