package capi

import "fmt"

// Convention is the calling convention foreign code uses for a method.
type Convention uint8

const (
	VarArgs         Convention = iota // f(self, args)
	VarArgsKeywords                   // f(self, args, kwargs)
)

func (c Convention) String() string {
	switch c {
	case VarArgs:
		return "varargs"
	case VarArgsKeywords:
		return "varargs+keywords"
	default:
		return fmt.Sprintf("Convention(%d)", uint8(c))
	}
}

// ForeignMethod exports a managed callable to foreign code. The convention
// is fixed at construction; invoking the method is left to the dispatcher,
// which reads Convention and Method to decide how to pass arguments.
//
// A nil method is accepted; any failure surfaces at invocation time.
type ForeignMethod struct {
	NativeWrapper

	convention Convention
}

func newForeignMethod(method any, conv Convention) *ForeignMethod {
	m := &ForeignMethod{convention: conv}
	m.delegate = method
	return m
}

// NewVarArgsMethod exports method with the positional-only convention.
func NewVarArgsMethod(method any) *ForeignMethod {
	return newForeignMethod(method, VarArgs)
}

// NewVarArgsKeywordsMethod exports method with the positional+keyword convention.
func NewVarArgsKeywordsMethod(method any) *ForeignMethod {
	return newForeignMethod(method, VarArgsKeywords)
}

// Method returns the exported callable.
func (m *ForeignMethod) Method() any {
	return m.delegate
}

// Convention returns the calling convention.
func (m *ForeignMethod) Convention() Convention {
	return m.convention
}

// Arguments shapes a call's arguments into the tuple the dispatcher passes
// after self: {args} for VarArgs, {args, kwargs} for VarArgsKeywords.
// Keyword arguments sent to a VarArgs method fail with ErrArity.
func (m *ForeignMethod) Arguments(args []any, kwargs map[string]any) ([]any, error) {
	switch m.convention {
	case VarArgs:
		if len(kwargs) > 0 {
			return nil, interopErrorf("call", ErrArity, "method takes no keyword arguments (%d given)", len(kwargs))
		}
		return []any{args}, nil
	case VarArgsKeywords:
		return []any{args, kwargs}, nil
	default:
		return nil, interopErrorf("call", ErrUnsupportedOperation, "unknown convention %s", m.convention)
	}
}

// IsNative returns true once a non-zero native pointer has been recorded.
func (m *ForeignMethod) IsNative() bool {
	return m.state().pointer != 0
}

// NativePointer returns the recorded pointer, or 0.
func (m *ForeignMethod) NativePointer() uintptr {
	return m.state().pointer
}

// SetNativePointer records the method's native pointer.
func (m *ForeignMethod) SetNativePointer(p uintptr) {
	m.state().set(p)
}

func (m *ForeignMethod) state() *nativeState {
	return lazyState(&m.native, m)
}

func (m *ForeignMethod) String() string {
	return fmt.Sprintf("ForeignMethod(%s, %s)", describeDelegate(m.delegate), m.convention)
}
