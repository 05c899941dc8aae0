package ffi

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	LibraryPrefix, LibraryExtension = libraryAffixes(runtime.GOOS)
}

func libraryAffixes(goos string) (prefix, ext string) {
	switch goos {
	case "darwin":
		return "lib", ".dylib"
	case "windows":
		return "", ".dll"
	default: // linux, freebsd, etc.
		return "lib", ".so"
	}
}

// FormatLibraryName returns the platform-specific filename for a library.
// Names that already carry a path separator or the platform extension are
// returned unchanged.
//
// Examples:
//   - Linux:   FormatLibraryName("bridge") -> "libbridge.so"
//   - macOS:   FormatLibraryName("bridge") -> "libbridge.dylib"
//   - Windows: FormatLibraryName("bridge") -> "bridge.dll"
func FormatLibraryName(name string) string {
	return formatLibraryName(runtime.GOOS, name)
}

func formatLibraryName(goos, name string) string {
	prefix, ext := libraryAffixes(goos)
	if strings.ContainsRune(name, '/') || strings.Contains(name, ext) {
		return name
	}
	return fmt.Sprintf("%s%s%s", prefix, strings.TrimPrefix(name, prefix), ext)
}

// LibrarySearchPaths returns the platform library search path, led by the
// directories in extra.
func LibrarySearchPaths(extra ...string) []string {
	paths := append([]string(nil), extra...)

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/lib",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib", // Apple Silicon
			"/usr/local/lib",    // Intel
		)
	}

	return paths
}

// candidatePaths lists the paths Open tries for name, in order: each search
// directory joined with the formatted name, then the bare formatted name so
// the system loader can apply its own rules.
func candidatePaths(name string, searchPaths []string) []string {
	file := FormatLibraryName(name)
	if filepath.IsAbs(file) || strings.ContainsRune(file, '/') {
		return []string{file}
	}

	candidates := make([]string, 0, len(searchPaths)+1)
	for _, dir := range searchPaths {
		candidates = append(candidates, filepath.Join(dir, file))
	}
	return append(candidates, file)
}
