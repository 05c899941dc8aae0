package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/nativebridge/capi"
	"github.com/chazu/nativebridge/config"
	"github.com/chazu/nativebridge/ffi"
	"github.com/chazu/nativebridge/vm"
	"github.com/chazu/nativebridge/wire"
)

// echoResolver resolves a handle to a fresh Handle object whose id is the
// handle itself. It stands in for a native endpoint when none is configured.
type echoResolver struct {
	class *vm.Class
}

func newEchoResolver(ctx *capi.Context) echoResolver {
	class := vm.NewClass("Handle", nil, "id")
	class.Namespace = "bridgectl"
	ctx.DefineClass(class, "bridgectl.Handle")
	return echoResolver{class: class}
}

func (r echoResolver) ResolveHandle(handle int64) (any, error) {
	v, ok := vm.TryFromSmallInt(handle)
	if !ok {
		return nil, fmt.Errorf("handle %d out of range: %w", handle, capi.ErrUnsupportedType)
	}
	obj := vm.NewObject(r.class)
	obj.SetSlot(r.class.InstVarIndex("id"), v)
	return obj, nil
}

func (echoResolver) String() string { return "echo" }

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bridgectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configDir := fs.String("config", ".", "Directory to search upward for bridge.toml")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides config)")
	library := fs.String("lib", "", "Native resolver library (overrides config)")
	symbol := fs.String("symbol", "", "Native resolver symbol (overrides config)")
	cacheSize := fs.Int("cache-size", 0, "Handle cache capacity (overrides config)")
	repeat := fs.Int("repeat", 1, "Resolve the handle list this many times")
	statsOut := fs.String("stats", "", "Write a CBOR stats snapshot to this file")
	dump := fs.String("dump", "", "Print a CBOR stats snapshot and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: bridgectl [options] [handles...]\n\n")
		fmt.Fprintf(stderr, "Resolves handles through a bridge context and prints cache statistics.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  bridgectl 1 2 1 3                          # Resolve with the echo resolver\n")
		fmt.Fprintf(stderr, "  bridgectl -lib myres -symbol resolve 1 2   # Resolve through a native function\n")
		fmt.Fprintf(stderr, "  bridgectl -repeat 10 -stats out.cbor 1 2   # Record stats after 10 passes\n")
		fmt.Fprintf(stderr, "  bridgectl -dump out.cbor                   # Inspect a recorded snapshot\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dump != "" {
		snap, err := wire.ReadSnapshot(*dump)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Snapshot taken %s\n", snap.Time().Format("2006-01-02 15:04:05"))
		printStats(stdout, snap.Stats)
		return 0
	}

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *library != "" {
		cfg.Native.Library = *library
	}
	if *symbol != "" {
		cfg.Native.Resolver = *symbol
	}
	if *cacheSize > 0 {
		cfg.Cache.Size = *cacheSize
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	configureLogging(cfg)

	handles, err := parseHandles(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := capi.NewContext(cfg.Options())

	var symbols config.SymbolSource
	var lib *ffi.Library
	if cfg.Native.Library != "" {
		lib, err = ffi.Open(cfg.Native.Library, cfg.LibrarySearchPaths())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer lib.Close()
		symbols = lib
	}

	if _, err := cfg.DefineClasses(ctx, symbols); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, decl := range cfg.Classes {
		if err := printClass(stdout, ctx, decl.FullName()); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	var resolver capi.Resolver
	if cfg.HasNativeResolver() {
		fn, err := lib.Symbol(cfg.Native.Resolver)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		resolver = ffi.NewNativeResolver(fn, ffi.NewDispatcher(), ctx)
	} else {
		resolver = newEchoResolver(ctx)
	}

	cache := ctx.HandleCache(resolver)
	for pass := 0; pass < *repeat; pass++ {
		for _, h := range handles {
			v, err := ctx.Execute(cache, []any{h})
			if err != nil {
				fmt.Fprintf(stderr, "Error: handle %d: %v\n", h, err)
				return 1
			}
			if pass == 0 {
				fmt.Fprintf(stdout, "%d => %s\n", h, describeValue(v))
			}
		}
	}

	stats := ctx.Stats()
	printStats(stdout, stats)

	if *statsOut != "" {
		if err := wire.WriteSnapshot(*statsOut, wire.NewSnapshot(ctx)); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func configureLogging(cfg *config.Config) {
	var path *string
	if p := cfg.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

func parseHandles(args []string) ([]int64, error) {
	handles := make([]int64, 0, len(args))
	for _, a := range args {
		h, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid handle %q: %w", a, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// describeValue prints objects as Class(slot, ...) and everything else
// with %v.
func describeValue(v any) string {
	obj, ok := v.(*vm.Object)
	if !ok || obj.Class() == nil {
		return fmt.Sprint(v)
	}
	class := obj.Class()
	fields := make([]string, 0, obj.NumSlots())
	for _, name := range class.InstVars {
		if i := class.InstVarIndex(name); i >= 0 && i < obj.NumSlots() {
			fields = append(fields, fmt.Sprintf("%s=%v", name, obj.GetSlot(i)))
		}
	}
	return class.Name + "(" + strings.Join(fields, ", ") + ")"
}

func printClass(w io.Writer, ctx *capi.Context, name string) error {
	fmt.Fprintf(w, "class %s\n", name)
	for _, key := range []string{capi.KeyGetBuffer, capi.KeyReleaseBuffer} {
		v, err := ctx.ReadClassNamed(name, key)
		if err != nil {
			return err
		}
		if p, ok := v.(capi.BufferProc); ok {
			fmt.Fprintf(w, "  %s: %#x\n", key, uintptr(p))
		} else {
			fmt.Fprintf(w, "  %s: %v\n", key, v)
		}
	}
	return nil
}

func printStats(w io.Writer, s capi.Stats) {
	fmt.Fprintf(w, "Context %s\n", s.ContextID)
	fmt.Fprintf(w, "  conversions:  %d\n", s.Conversions)
	fmt.Fprintf(w, "  materialized: %d\n", s.Materialized)
	fmt.Fprintf(w, "  handles:      %d\n", s.Handles)
	fmt.Fprintf(w, "  classes:      %d\n", s.Classes)
	for _, c := range s.Caches {
		fmt.Fprintf(w, "  cache %s: %d/%d entries, %d hits, %d misses (%.1f%% hit rate)\n",
			c.Resolver, c.Len, c.Capacity, c.Hits, c.Misses, c.HitRate)
	}
}
