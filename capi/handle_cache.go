package capi

// Handle resolution caching
//
// Native code hands back opaque integer handles that must be resolved to
// managed values on a hot call path. Handles show strong locality (the same
// handle resolved repeatedly in a loop), so each resolver gets a small
// fixed-size cache scanned linearly. Eviction is round-robin: a hit never
// moves an entry, only newly resolved handles advance the write position.

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/nativebridge/vm"
)

// CacheSize is the default number of entries per handle cache.
const CacheSize = 10

// Resolver turns a native handle into a managed value on a cache miss.
//
// Resolvers identify a resolution endpoint. To be used with
// HandleCacheTable or ResolveWith a resolver must be comparable; two equal
// resolvers are the same endpoint and share one cache.
type Resolver interface {
	ResolveHandle(handle int64) (any, error)
}

// ResolverFunc adapts a function to Resolver. Functions are not
// comparable, so a ResolverFunc can only back a cache built directly with
// NewHandleCache.
type ResolverFunc func(handle int64) (any, error)

// ResolveHandle calls f(handle).
func (f ResolverFunc) ResolveHandle(handle int64) (any, error) {
	return f(handle)
}

// HandleCache maps recently resolved handles to their values for a single
// resolver. It does no locking: one cache is expected to be driven by one
// caller at a time.
type HandleCache struct {
	keys     []int64
	values   []any
	n        int // populated slots
	writePos int
	resolver Resolver
	log      commonlog.Logger

	// Statistics for profiling
	Hits   uint64
	Misses uint64
}

// NewHandleCache creates a cache bound to resolver. A capacity <= 0
// selects CacheSize.
func NewHandleCache(resolver Resolver, capacity int) *HandleCache {
	return newHandleCache(resolver, capacity, commonlog.GetLogger("nativebridge.capi"))
}

func newHandleCache(resolver Resolver, capacity int, log commonlog.Logger) *HandleCache {
	if resolver == nil {
		violate("handle cache needs a resolver")
	}
	if capacity <= 0 {
		capacity = CacheSize
	}
	return &HandleCache{
		keys:     make([]int64, capacity),
		values:   make([]any, capacity),
		resolver: resolver,
		log:      log,
	}
}

// Resolve returns the value for handle, consulting the resolver only when
// the handle is not cached. Resolver failures are returned unchanged and
// leave the cache untouched.
func (c *HandleCache) Resolve(handle int64) (any, error) {
	for i := 0; i < c.n; i++ {
		if c.keys[i] == handle {
			c.Hits++
			return c.values[i], nil
		}
	}

	c.Misses++
	value, err := c.resolver.ResolveHandle(handle)
	if err != nil {
		c.log.Warningf("resolving handle %d: %s", handle, err.Error())
		return nil, err
	}

	c.log.Debugf("cached handle %d in slot %d", handle, c.writePos)
	c.keys[c.writePos] = handle
	c.values[c.writePos] = value
	c.writePos = (c.writePos + 1) % len(c.keys)
	if c.n < len(c.keys) {
		c.n++
	}
	return value, nil
}

// ResolveWith resolves handle and asserts that resolver is the one the
// cache is bound to. Mixing resolvers in one cache panics.
func (c *HandleCache) ResolveWith(resolver Resolver, handle int64) (any, error) {
	if !sameResolver(c.resolver, resolver) {
		violate("handle cache bound to %s used with %s", describeResolver(c.resolver), describeResolver(resolver))
	}
	return c.Resolve(handle)
}

// Execute is the foreign-facing entry point: exactly one argument, the handle.
func (c *HandleCache) Execute(args []any) (any, error) {
	if len(args) != 1 {
		return nil, interopErrorf("resolve", ErrArity, "expected 1 argument, got %d", len(args))
	}
	handle, err := toHandle(args[0])
	if err != nil {
		return nil, err
	}
	return c.Resolve(handle)
}

// Resolver returns the resolver the cache is bound to.
func (c *HandleCache) Resolver() Resolver {
	return c.resolver
}

// Capacity returns the fixed number of slots.
func (c *HandleCache) Capacity() int {
	return len(c.keys)
}

// Len returns the number of populated slots.
func (c *HandleCache) Len() int {
	return c.n
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (c *HandleCache) HitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) * 100 / float64(total)
}

// Reset empties the cache and clears its statistics.
func (c *HandleCache) Reset() {
	for i := range c.keys {
		c.keys[i] = 0
		c.values[i] = nil
	}
	c.n = 0
	c.writePos = 0
	c.Hits = 0
	c.Misses = 0
}

// Stats returns a snapshot of the cache's statistics.
func (c *HandleCache) Stats() CacheStats {
	return CacheStats{
		Resolver: describeResolver(c.resolver),
		Capacity: len(c.keys),
		Len:      c.n,
		Hits:     c.Hits,
		Misses:   c.Misses,
		HitRate:  c.HitRate(),
	}
}

// toHandle accepts the integer forms a handle arrives in from either side
// of the boundary.
func toHandle(v any) (int64, error) {
	switch h := v.(type) {
	case int64:
		return h, nil
	case int:
		return int64(h), nil
	case int32:
		return int64(h), nil
	case uint32:
		return int64(h), nil
	case uintptr:
		return int64(h), nil
	case Pointer:
		return int64(h), nil
	case vm.Value:
		if h.IsSmallInt() {
			return h.SmallInt(), nil
		}
	}
	return 0, interopErrorf("resolve", ErrUnsupportedType, "handle of type %T", v)
}

func sameResolver(a, b Resolver) bool {
	if a == nil || b == nil {
		return a == b
	}
	mustBeComparable(a)
	mustBeComparable(b)
	return a == b
}

// mustBeComparable checks the resolver's dynamic value, not just its type:
// a struct holding an interface field is a comparable type, but comparing
// or hashing it panics when that field holds a slice, map or func.
func mustBeComparable(r Resolver) {
	if !reflect.ValueOf(r).Comparable() {
		violate("resolver %T is not comparable and cannot identify an endpoint", r)
	}
}

func describeResolver(r Resolver) string {
	if s, ok := r.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", r)
}

// ---------------------------------------------------------------------------
// HandleCacheTable
// ---------------------------------------------------------------------------

// HandleCacheTable holds one HandleCache per resolver endpoint.
type HandleCacheTable struct {
	mu       sync.Mutex
	caches   map[Resolver]*HandleCache
	order    []*HandleCache
	capacity int
	log      commonlog.Logger
}

// NewHandleCacheTable creates a table whose caches have the given capacity.
func NewHandleCacheTable(capacity int) *HandleCacheTable {
	return newHandleCacheTable(capacity, commonlog.GetLogger("nativebridge.capi"))
}

func newHandleCacheTable(capacity int, log commonlog.Logger) *HandleCacheTable {
	if capacity <= 0 {
		capacity = CacheSize
	}
	return &HandleCacheTable{
		caches:   make(map[Resolver]*HandleCache),
		capacity: capacity,
		log:      log,
	}
}

// GetOrCreate returns the cache for resolver, creating one if needed.
func (t *HandleCacheTable) GetOrCreate(resolver Resolver) *HandleCache {
	if resolver == nil {
		violate("handle cache needs a resolver")
	}
	mustBeComparable(resolver)

	t.mu.Lock()
	defer t.mu.Unlock()
	if c := t.caches[resolver]; c != nil {
		return c
	}
	c := newHandleCache(resolver, t.capacity, t.log)
	t.caches[resolver] = c
	t.order = append(t.order, c)
	t.log.Debugf("new handle cache for %s (capacity %d)", describeResolver(resolver), t.capacity)
	return c
}

// Get returns the cache for resolver, or nil if none exists. A nil
// resolver has no cache.
func (t *HandleCacheTable) Get(resolver Resolver) *HandleCache {
	if resolver == nil {
		return nil
	}
	mustBeComparable(resolver)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caches[resolver]
}

// Len returns the number of caches.
func (t *HandleCacheTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.caches)
}

// Stats returns per-cache statistics in creation order.
func (t *HandleCacheTable) Stats() []CacheStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := make([]CacheStats, len(t.order))
	for i, c := range t.order {
		stats[i] = c.Stats()
	}
	return stats
}

// HitRate returns the aggregate hit rate for all caches.
func (t *HandleCacheTable) HitRate() float64 {
	var hits, misses uint64
	for _, s := range t.Stats() {
		hits += s.Hits
		misses += s.Misses
	}
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}

// Reset clears all caches in the table.
func (t *HandleCacheTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.order {
		c.Reset()
	}
}
