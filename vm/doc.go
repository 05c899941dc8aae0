// Package vm implements the managed object model the bridge exposes to
// native code.
//
// This package contains:
//   - NaN-boxed value representation (floats, small integers, nil/true/false)
//   - Object layout and slot access
//   - Classes and the class table
//   - The per-object native slot that caches an object's wrapper
package vm
