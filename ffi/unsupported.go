//go:build !((darwin || linux) && (amd64 || arm64))

package ffi

import (
	"fmt"
	"runtime"
)

// Library is a loaded shared library. No library can be loaded on this
// platform.
type Library struct {
	name string
}

// Open always fails on this platform.
func Open(name string, searchPaths []string) (*Library, error) {
	return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
}

// Name returns the name the library was opened with.
func (l *Library) Name() string {
	return l.name
}

// Path returns the empty string.
func (l *Library) Path() string {
	return ""
}

// Symbol always fails on this platform.
func (l *Library) Symbol(name string) (uintptr, error) {
	return 0, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, l.name)
}

// Close is a no-op.
func (l *Library) Close() error {
	return nil
}

const nativeCalls = false

func call(fn uintptr, arg uintptr) uintptr {
	panic("ffi: native calls are not supported on " + runtime.GOOS + "/" + runtime.GOARCH)
}
