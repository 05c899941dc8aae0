// Package capi bridges managed objects to native code through opaque
// pointers.
//
// This package contains:
//   - NativeWrapper, the unique native identity of a managed object
//   - ClassWrapper, the native identity of a class with its buffer procs
//   - ForeignMethod, a managed callable exported with a calling convention
//   - NullSentinel, the native absence of a value
//   - HandleCache, a small round-robin cache from native handles to values
//   - EnsurePointerForm, which materializes wrappers at most once
//   - Context, the per-runtime registry tying these together
//
// Identity violations (nesting wrappers, conflicting native pointers,
// mixing resolvers in one cache) panic with *ContractViolation. All other
// failures are returned as errors matching one of the Err* kinds.
package capi
