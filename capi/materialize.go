package capi

// Pointer is a materialized native address. It is already in pointer form.
type Pointer uintptr

// PointerProtocol converts interoperable values to pointer form.
type PointerProtocol interface {
	// IsPointer reports whether v is already in pointer form.
	IsPointer(v any) bool

	// ToPointerForm materializes v. Implementations return an error
	// matching ErrUnsupportedOperation for values they cannot convert.
	ToPointerForm(v any) (any, error)
}

// IsInterop reports whether v can cross the native boundary at all:
// wrappers and raw pointers can, plain managed values cannot.
func IsInterop(v any) bool {
	switch v.(type) {
	case Wrapper, Pointer:
		return true
	}
	return false
}

// EnsurePointerForm returns v in pointer form. Values that are not
// interoperable are returned unchanged; values already in pointer form are
// returned without calling ToPointerForm, so repeated calls materialize at
// most once. Materialization failures are returned unchanged.
func EnsurePointerForm(p PointerProtocol, v any) (any, error) {
	if !IsInterop(v) {
		return v, nil
	}
	if p.IsPointer(v) {
		return v, nil
	}
	return p.ToPointerForm(v)
}

// handleProtocol materializes wrappers by registering them in the owning
// context's handle table; the issued handle becomes the native pointer.
type handleProtocol struct {
	ctx *Context
}

func (p handleProtocol) IsPointer(v any) bool {
	switch x := v.(type) {
	case Pointer:
		return true
	case Wrapper:
		return x.IsNative()
	}
	return false
}

func (p handleProtocol) ToPointerForm(v any) (any, error) {
	w, ok := v.(Wrapper)
	if !ok {
		return nil, interopErrorf("to-native", ErrUnsupportedOperation, "cannot materialize %T", v)
	}
	p.ctx.materialize(w)
	return w, nil
}
