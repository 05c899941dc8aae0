package capi

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to callers of the bridge. Every error returned by
// this package (and by resolvers or materializers plugged into it) matches
// exactly one of these with errors.Is.
var (
	// ErrArity indicates a call site supplied an unexpected number of arguments.
	ErrArity = errors.New("capi: arity mismatch")

	// ErrUnsupportedType indicates a value of a type the operation cannot handle.
	ErrUnsupportedType = errors.New("capi: unsupported type")

	// ErrUnsupportedOperation indicates the receiver does not support the operation.
	ErrUnsupportedOperation = errors.New("capi: unsupported operation")

	// ErrUnknownIdentifier indicates a symbolic read with an unrecognized key.
	ErrUnknownIdentifier = errors.New("capi: unknown identifier")

	// ErrNoClassWrapper indicates a class member was read before the class
	// had been wrapped for native code.
	ErrNoClassWrapper = errors.New("capi: class has no native wrapper")
)

// InteropError records the operation that failed alongside the failure kind.
type InteropError struct {
	Op   string // Operation, e.g. "read" or "resolve"
	Kind error  // One of the Err* kinds above
	Msg  string // Optional detail
}

func (e *InteropError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap exposes the failure kind to errors.Is.
func (e *InteropError) Unwrap() error {
	return e.Kind
}

func interopErrorf(op string, kind error, format string, args ...any) error {
	return &InteropError{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ContractViolation is the panic value raised when a caller breaks an
// identity invariant of the bridge. It is never returned as an error.
type ContractViolation struct {
	Msg string
}

func (c *ContractViolation) Error() string {
	return "capi: contract violation: " + c.Msg
}

func violate(format string, args ...any) {
	panic(&ContractViolation{Msg: fmt.Sprintf(format, args...)})
}
