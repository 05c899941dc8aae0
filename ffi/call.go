//go:build (darwin || linux) && (amd64 || arm64)

package ffi

import (
	"github.com/ebitengine/purego"
)

const nativeCalls = true

// call invokes fn with a single word argument.
func call(fn uintptr, arg uintptr) uintptr {
	r1, _, _ := purego.SyscallN(fn, arg)
	return r1
}
