// Package config handles bridge.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/nativebridge/capi"
	"github.com/chazu/nativebridge/ffi"
	"github.com/chazu/nativebridge/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "bridge.toml"

// Config represents a bridge.toml configuration.
type Config struct {
	Cache  Cache  `toml:"cache"`
	Native Native `toml:"native"`
	Log    Log    `toml:"log"`

	// Classes are defined in order, so a superclass must precede its
	// subclasses.
	Classes []Class `toml:"class"`

	// Dir is the directory containing the bridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Cache configures handle caches.
type Cache struct {
	Size int `toml:"size"`
}

// Native configures the native resolver endpoint.
type Native struct {
	Library     string   `toml:"library"`
	Resolver    string   `toml:"resolver"`
	SearchPaths []string `toml:"search-paths"`
}

// Class declares a managed class exported to native code. The buffer
// procedures name symbols in the native library.
type Class struct {
	Name          string   `toml:"name"`
	Namespace     string   `toml:"namespace"`
	DisplayName   string   `toml:"display-name"`
	Superclass    string   `toml:"superclass"`
	InstVars      []string `toml:"inst-vars"`
	GetBuffer     string   `toml:"get-buffer"`
	ReleaseBuffer string   `toml:"release-buffer"`
}

// FullName returns the namespace-qualified name the class is defined under.
func (c Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// HasProcs reports whether the class names any buffer procedure.
func (c Class) HasProcs() bool {
	return c.GetBuffer != "" || c.ReleaseBuffer != ""
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Default returns the configuration used when no bridge.toml is found.
func Default() *Config {
	return &Config{
		Cache: Cache{Size: capi.CacheSize},
	}
}

// Load parses a bridge.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	// Defaults
	if c.Cache.Size == 0 {
		c.Cache.Size = capi.CacheSize
	}

	return c, nil
}

// FindAndLoad walks up from startDir to find a bridge.toml file,
// then loads and returns the configuration. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate reports settings that cannot be applied.
func (c *Config) Validate() error {
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.Cache.Size)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	if c.Native.Resolver != "" && c.Native.Library == "" {
		return fmt.Errorf("native resolver %q needs a library", c.Native.Resolver)
	}
	for i, cls := range c.Classes {
		if cls.Name == "" {
			return fmt.Errorf("class %d has no name", i+1)
		}
		if cls.HasProcs() && c.Native.Library == "" {
			return fmt.Errorf("buffer procedures of class %s need a library", cls.Name)
		}
	}
	return nil
}

// SymbolSource resolves native symbol names. *ffi.Library is a
// SymbolSource.
type SymbolSource interface {
	Symbol(name string) (uintptr, error)
}

// DefineClasses defines the configured classes in ctx and binds their
// buffer procedures through symbols, which may be nil when no class names
// a procedure. Superclasses are looked up among the classes already
// defined in ctx.
func (c *Config) DefineClasses(ctx *capi.Context, symbols SymbolSource) ([]*capi.ClassWrapper, error) {
	wrappers := make([]*capi.ClassWrapper, 0, len(c.Classes))
	for _, decl := range c.Classes {
		var super *vm.Class
		if decl.Superclass != "" {
			super = ctx.Classes().Lookup(decl.Superclass)
			if super == nil {
				return nil, fmt.Errorf("class %s: unknown superclass %s", decl.Name, decl.Superclass)
			}
		}

		class := vm.NewClass(decl.Name, super, decl.InstVars...)
		class.Namespace = decl.Namespace

		getBuffer, err := lookupProc(symbols, decl.GetBuffer)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class.FullName(), err)
		}
		releaseBuffer, err := lookupProc(symbols, decl.ReleaseBuffer)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class.FullName(), err)
		}

		cw := ctx.DefineClass(class, decl.DisplayName)
		cw.SetGetBufferProc(getBuffer)
		cw.SetReleaseBufferProc(releaseBuffer)
		wrappers = append(wrappers, cw)
	}
	return wrappers, nil
}

func lookupProc(symbols SymbolSource, name string) (capi.BufferProc, error) {
	if name == "" {
		return capi.NoProc, nil
	}
	if symbols == nil {
		return capi.NoProc, fmt.Errorf("buffer procedure %s needs a library", name)
	}
	addr, err := symbols.Symbol(name)
	if err != nil {
		return capi.NoProc, err
	}
	return capi.BufferProc(addr), nil
}

// HasNativeResolver reports whether a native resolver endpoint is configured.
func (c *Config) HasNativeResolver() bool {
	return c.Native.Library != "" && c.Native.Resolver != ""
}

// LibrarySearchPaths returns the configured search paths, made absolute
// against the config directory, followed by the platform defaults.
func (c *Config) LibrarySearchPaths() []string {
	var paths []string
	for _, p := range c.Native.SearchPaths {
		if !filepath.IsAbs(p) && c.Dir != "" {
			p = filepath.Join(c.Dir, p)
		}
		paths = append(paths, p)
	}
	return ffi.LibrarySearchPaths(paths...)
}

// LogPath returns the log file path, made absolute against the config
// directory. An empty path means stderr.
func (c *Config) LogPath() string {
	if c.Log.Path == "" || filepath.IsAbs(c.Log.Path) || c.Dir == "" {
		return c.Log.Path
	}
	return filepath.Join(c.Dir, c.Log.Path)
}

// Options converts the configuration to context options.
func (c *Config) Options() capi.Options {
	return capi.Options{CacheSize: c.Cache.Size}
}
