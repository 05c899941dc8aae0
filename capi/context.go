package capi

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/nativebridge/internal/handles"
	"github.com/chazu/nativebridge/vm"
)

// Options configures a Context.
type Options struct {
	// CacheSize is the capacity of each handle cache (CacheSize if <= 0).
	CacheSize int

	// Protocol materializes wrappers. Nil selects the context's handle
	// table: the issued handle becomes the wrapper's native pointer.
	Protocol PointerProtocol

	// Logger overrides the default "nativebridge.capi" logger.
	Logger commonlog.Logger
}

// Context is the per-runtime registry of the bridge. It owns everything that
// would otherwise be process-global: the NULL sentinel, the wrappers of the
// special singletons and small integers, one handle cache per resolver, and
// the handle table backing pointer materialization.
type Context struct {
	id  uuid.UUID
	log commonlog.Logger

	null *NullSentinel

	mu        sync.Mutex // guards lazy creation of specials and smallInts
	specials  [vm.NumSpecials]*NativeWrapper
	smallInts [SmallIntMax - SmallIntMin]*NativeWrapper

	classes  *vm.ClassTable
	caches   *HandleCacheTable
	handles  *handles.Table[nativeState]
	protocol PointerProtocol

	conversions  atomic.Uint64
	materialized atomic.Uint64
}

// NewContext creates a bridge context.
func NewContext(opts Options) *Context {
	ctx := &Context{
		id:      uuid.New(),
		log:     opts.Logger,
		null:    newNullSentinel(),
		classes: vm.NewClassTable(),
		handles: handles.New[nativeState](),
	}
	if ctx.log == nil {
		ctx.log = commonlog.GetLogger("nativebridge.capi")
	}
	ctx.caches = newHandleCacheTable(opts.CacheSize, ctx.log)
	ctx.protocol = opts.Protocol
	if ctx.protocol == nil {
		ctx.protocol = handleProtocol{ctx: ctx}
	}
	ctx.log.Infof("bridge context %s created (handle cache size %d)", ctx.id, ctx.caches.capacity)
	return ctx
}

// ID returns the context's unique identifier.
func (ctx *Context) ID() uuid.UUID {
	return ctx.id
}

// Null returns the context's NULL sentinel.
func (ctx *Context) Null() *NullSentinel {
	return ctx.null
}

// Classes returns the table of classes defined in this context.
func (ctx *Context) Classes() *vm.ClassTable {
	return ctx.classes
}

// DefineClass registers c under its full name and returns its class
// wrapper. Redefining a name replaces the registered class; the old class
// keeps its wrapper.
func (ctx *Context) DefineClass(c *vm.Class, displayName string) *ClassWrapper {
	if c == nil {
		violate("cannot define a nil class")
	}
	if old := ctx.classes.Register(c); old != nil && old != c {
		ctx.log.Warningf("class %s redefined", c.FullName())
	}
	if displayName == "" {
		displayName = c.FullName()
	}
	return WrapClass(c, displayName)
}

// Caches returns the per-resolver handle cache table.
func (ctx *Context) Caches() *HandleCacheTable {
	return ctx.caches
}

// ---------------------------------------------------------------------------
// Outward: managed -> native
// ---------------------------------------------------------------------------

// ToNative returns the native identity of v:
//   - Go nil maps to the NULL sentinel;
//   - nil, true and false (managed or Go bool) map to one wrapper each
//     per context;
//   - small integers map to one wrapper per value, other integers and
//     floats to a fresh wrapper;
//   - classes and objects map to the wrapper cached on them.
//
// Passing a wrapper panics: wrapper identities do not nest.
func (ctx *Context) ToNative(v any) (Wrapper, error) {
	ctx.conversions.Add(1)

	switch x := v.(type) {
	case nil:
		return ctx.null, nil
	case Wrapper:
		violate("%s is already a native wrapper", describe(x))
	case vm.Value:
		return ctx.wrapValue(x)
	case bool:
		return ctx.special(vm.FromBool(x)), nil
	case float64:
		return ctx.wrapValue(vm.FromFloat64(x))
	case int:
		return ctx.wrapInt(int64(x))
	case int64:
		return ctx.wrapInt(x)
	case *vm.Class:
		if x == nil {
			return ctx.null, nil
		}
		return WrapClass(x, x.Name), nil
	case *vm.Object:
		if x == nil {
			return ctx.null, nil
		}
		return Wrap(x), nil
	case Delegate:
		return Wrap(x), nil
	}
	return nil, interopErrorf("to-native", ErrUnsupportedType, "%T has no native identity", v)
}

func (ctx *Context) wrapValue(v vm.Value) (Wrapper, error) {
	switch {
	case v.IsSpecial():
		return ctx.special(v), nil
	case v.IsSmallInt():
		return ctx.wrapInt(v.SmallInt())
	}
	return newNativeWrapper(v), nil
}

func (ctx *Context) wrapInt(i int64) (Wrapper, error) {
	if IsSmallInteger(i) {
		return ctx.smallInt(i), nil
	}
	v, ok := vm.TryFromSmallInt(i)
	if !ok {
		return nil, interopErrorf("to-native", ErrUnsupportedType, "integer %d out of range", i)
	}
	return newNativeWrapper(v), nil
}

func (ctx *Context) special(v vm.Value) *NativeWrapper {
	idx := v.SpecialIndex()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if w := ctx.specials[idx]; w != nil {
		return w
	}
	w := newNativeWrapper(v)
	ctx.specials[idx] = w
	return w
}

func (ctx *Context) smallInt(i int64) *NativeWrapper {
	idx := i - SmallIntMin
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if w := ctx.smallInts[idx]; w != nil {
		return w
	}
	w := newNativeWrapper(vm.FromSmallInt(i))
	ctx.smallInts[idx] = w
	return w
}

// EnsurePointerForm returns v in pointer form using the context's protocol.
func (ctx *Context) EnsurePointerForm(v any) (any, error) {
	return EnsurePointerForm(ctx.protocol, v)
}

func (ctx *Context) materialize(w Wrapper) {
	st := w.state()
	if st.pointer != 0 {
		return
	}
	id := ctx.handles.Register(st)
	st.set(id)
	ctx.materialized.Add(1)
	ctx.log.Debugf("materialized %s as %#x", describe(w), id)
}

// Release clears w's native pointer and frees its handle. The wrapper may
// be materialized again afterwards.
func (ctx *Context) Release(w Wrapper) {
	st := w.state()
	if st.pointer == 0 {
		return
	}
	if ctx.handles.Lookup(st.pointer) == st {
		ctx.handles.Unregister(st.pointer)
	}
	st.set(0)
}

// ---------------------------------------------------------------------------
// Inward: native -> managed
// ---------------------------------------------------------------------------

// FromNative returns the managed value behind w. The NULL sentinel is
// returned as itself.
func (ctx *Context) FromNative(w Wrapper) any {
	switch x := w.(type) {
	case *NullSentinel:
		return x
	case *ClassWrapper:
		return x.Class()
	case *ForeignMethod:
		return x.Method()
	case *NativeWrapper:
		return x.Delegate()
	}
	return nil
}

// Lookup maps a pointer issued by the context's handle table back to its
// wrapper. It returns nil for unknown or released pointers.
func (ctx *Context) Lookup(ptr uintptr) Wrapper {
	st := ctx.handles.Lookup(ptr)
	if st == nil || st.pointer != ptr {
		return nil
	}
	return st.owner
}

// Decode maps a native pointer to the managed value it stands for. A zero
// pointer decodes to the NULL sentinel.
func (ctx *Context) Decode(ptr uintptr) (any, error) {
	if ptr == 0 {
		return ctx.null, nil
	}
	w := ctx.Lookup(ptr)
	if w == nil {
		return nil, interopErrorf("decode", ErrUnsupportedType, "unknown native pointer %#x", ptr)
	}
	return ctx.FromNative(w), nil
}

// HandleCache returns the cache bound to resolver, creating it on first use.
func (ctx *Context) HandleCache(resolver Resolver) *HandleCache {
	return ctx.caches.GetOrCreate(resolver)
}

// Resolve resolves handle through the cache bound to resolver.
func (ctx *Context) Resolve(resolver Resolver, handle int64) (any, error) {
	return ctx.HandleCache(resolver).Resolve(handle)
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// CacheStats describes one handle cache.
type CacheStats struct {
	Resolver string  `cbor:"1,keyasint"`
	Capacity int     `cbor:"2,keyasint"`
	Len      int     `cbor:"3,keyasint"`
	Hits     uint64  `cbor:"4,keyasint"`
	Misses   uint64  `cbor:"5,keyasint"`
	HitRate  float64 `cbor:"6,keyasint"`
}

// Stats is a point-in-time snapshot of a context.
type Stats struct {
	ContextID    string       `cbor:"1,keyasint"`
	Conversions  uint64       `cbor:"2,keyasint"`
	Materialized uint64       `cbor:"3,keyasint"`
	Handles      int          `cbor:"4,keyasint"`
	Caches       []CacheStats `cbor:"5,keyasint,omitempty"`
	Classes      int          `cbor:"6,keyasint,omitempty"`
}

// Stats returns a snapshot of the context's counters and caches.
func (ctx *Context) Stats() Stats {
	return Stats{
		ContextID:    ctx.id.String(),
		Conversions:  ctx.conversions.Load(),
		Materialized: ctx.materialized.Load(),
		Handles:      ctx.handles.Count(),
		Caches:       ctx.caches.Stats(),
		Classes:      ctx.classes.Len(),
	}
}
