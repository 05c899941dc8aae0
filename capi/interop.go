package capi

import "github.com/chazu/nativebridge/vm"

// Read performs a symbolic member read on behalf of foreign code. Only
// class wrappers support reads; an unset buffer procedure reads as the
// context's NULL sentinel rather than as a Go nil.
func (ctx *Context) Read(v any, key string) (any, error) {
	switch x := v.(type) {
	case *ClassWrapper:
		p, err := x.Proc(key)
		if err != nil {
			return nil, err
		}
		if p == NoProc {
			return ctx.null, nil
		}
		return p, nil
	case *NativeWrapper, *ForeignMethod, *NullSentinel, *HandleCache:
		return nil, interopErrorf("read", ErrUnsupportedOperation, "%T has no readable members", v)
	}
	return nil, interopErrorf("read", ErrUnsupportedType, "%T is not a native wrapper", v)
}

// ReadClass reads key from the wrapper of c. Reading a class that has not
// been wrapped yet fails with ErrNoClassWrapper; no wrapper is created.
func (ctx *Context) ReadClass(c *vm.Class, key string) (any, error) {
	cw, ok := c.Native().Load().(*ClassWrapper)
	if !ok {
		return nil, interopErrorf("read", ErrNoClassWrapper, "class %s, key %q", c.FullName(), key)
	}
	return ctx.Read(cw, key)
}

// ReadClassNamed reads key from the wrapper of the class defined under
// name. An undefined name fails with ErrUnknownIdentifier.
func (ctx *Context) ReadClassNamed(name, key string) (any, error) {
	c := ctx.classes.Lookup(name)
	if c == nil {
		return nil, interopErrorf("read", ErrUnknownIdentifier, "no class named %s", name)
	}
	return ctx.ReadClass(c, key)
}

// Execute invokes v on behalf of foreign code. Only handle caches are
// executable here (their single argument is the handle to resolve); calling
// exported methods is the dispatcher's job.
func (ctx *Context) Execute(v any, args []any) (any, error) {
	switch x := v.(type) {
	case *HandleCache:
		return x.Execute(args)
	case *NativeWrapper, *ClassWrapper, *ForeignMethod, *NullSentinel:
		return nil, interopErrorf("execute", ErrUnsupportedOperation, "%T is not executable", v)
	}
	return nil, interopErrorf("execute", ErrUnsupportedType, "%T is not a native wrapper", v)
}
