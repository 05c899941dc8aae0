// Package ffi calls into native code for the bridge.
//
// It loads shared libraries with purego, invokes native resolver functions
// with a single handle argument, and adapts them to capi.Resolver so that
// native resolution endpoints can sit behind a capi handle cache.
package ffi

import (
	"errors"

	"github.com/tliron/commonlog"
)

var (
	// ErrLibraryNotFound is returned when no candidate library path loads.
	ErrLibraryNotFound = errors.New("ffi: library not found")

	// ErrSymbolNotFound is returned when a symbol is missing from a library.
	ErrSymbolNotFound = errors.New("ffi: symbol not found")

	// ErrLibraryClosed is returned for lookups on a closed library.
	ErrLibraryClosed = errors.New("ffi: library closed")

	// ErrUnsupportedPlatform is returned where purego cannot load libraries.
	ErrUnsupportedPlatform = errors.New("ffi: unsupported platform")
)

// logger is looked up on construction so that a backend configured after
// package init is honored.
func logger() commonlog.Logger {
	return commonlog.GetLogger("nativebridge.ffi")
}
