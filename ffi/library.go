//go:build (darwin || linux) && (amd64 || arm64)

package ffi

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/tliron/commonlog"
)

// Library is a loaded shared library.
type Library struct {
	name   string
	path   string
	log    commonlog.Logger
	mu     sync.Mutex
	handle uintptr
}

// Open loads the named library, trying each directory in searchPaths before
// deferring to the system loader.
func Open(name string, searchPaths []string) (*Library, error) {
	log := logger()

	var lastErr error
	for _, path := range candidatePaths(name, searchPaths) {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		log.Infof("loaded %s from %s", name, path)
		return &Library{name: name, path: path, log: log, handle: handle}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrLibraryNotFound, name, lastErr.Error())
	}
	return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// Name returns the name the library was opened with.
func (l *Library) Name() string {
	return l.name
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Symbol returns the address of the named symbol.
func (l *Library) Symbol(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == 0 {
		return 0, fmt.Errorf("%w: %s", ErrLibraryClosed, l.name)
	}
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil || addr == 0 {
		return 0, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, l.name)
	}
	l.log.Debugf("resolved symbol %s at %#x", name, addr)
	return addr, nil
}

// Close unloads the library. Closing twice is a no-op.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}
