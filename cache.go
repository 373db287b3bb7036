package databind

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type direction uint8

const (
	serialization direction = iota
	deserialization
)

func (d direction) String() string {
	if d == deserialization {
		return "deserialize"
	}
	return "serialize"
}

type cacheKey struct {
	typ Type
	dir direction
}

// generation holds completed strategies. Entries are immutable once stored
// and are read without locks.
type generation struct {
	id      uint64
	entries sync.Map // map[cacheKey]Strategy
}

// strategyCache resolves each key at most once per generation.
//
// All resolution runs under mu, which makes it single-flight: a caller that
// finds no entry takes mu and checks again before resolving. Reconfiguration
// takes the same mutex, so swapping generations waits for in-flight
// resolutions.
type strategyCache struct {
	mu  sync.Mutex
	gen atomic.Pointer[generation]

	hits        atomic.Int64
	resolutions atomic.Int64
}

func newStrategyCache() *strategyCache {
	c := &strategyCache{}
	c.gen.Store(&generation{id: 1})
	return c
}

// resolveFunc builds the strategy for key, looking up dependencies through s.
type resolveFunc func(s *session, key cacheKey) (Strategy, error)

// session tracks one top-level resolution and every dependency it pulls in.
type session struct {
	gen     *generation
	resolve resolveFunc
	pending map[cacheKey]*lazyStrategy
	done    map[cacheKey]Strategy
}

// getOrResolve returns the cached strategy for key or resolves it.
func (c *strategyCache) getOrResolve(key cacheKey, resolve resolveFunc) (Strategy, error) {
	gen := c.gen.Load()
	if s, ok := gen.entries.Load(key); ok {
		c.hits.Add(1)
		return s.(Strategy), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	gen = c.gen.Load()
	if s, ok := gen.entries.Load(key); ok {
		c.hits.Add(1)
		return s.(Strategy), nil
	}

	start := time.Now()
	sess := &session{
		gen:     gen,
		resolve: resolve,
		pending: make(map[cacheKey]*lazyStrategy),
		done:    make(map[cacheKey]Strategy),
	}
	s, err := sess.lookup(key)
	emitResolveComplete(context.Background(), key.typ.String(), key.dir.String(), len(sess.done), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	// Publish only after the whole tree resolved, so no cached strategy can
	// hold a placeholder that will never be patched.
	for k, st := range sess.done {
		gen.entries.Store(k, st)
	}
	c.resolutions.Add(int64(len(sess.done)))
	return s, nil
}

// lookup returns a strategy for key within the session. A key that is
// already being resolved further up the stack yields its placeholder.
func (s *session) lookup(key cacheKey) (Strategy, error) {
	if st, ok := s.gen.entries.Load(key); ok {
		return st.(Strategy), nil
	}
	if st, ok := s.done[key]; ok {
		return st, nil
	}
	if lazy, ok := s.pending[key]; ok {
		return lazy, nil
	}

	lazy := &lazyStrategy{typ: key.typ}
	s.pending[key] = lazy
	st, err := s.resolve(s, key)
	delete(s.pending, key)
	if err != nil {
		return nil, err
	}
	lazy.patch(st)
	s.done[key] = st
	return st, nil
}

// reconfigure runs fn behind the resolution barrier and starts a new generation.
func (c *strategyCache) reconfigure(fn func()) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	next := &generation{id: c.gen.Load().id + 1}
	c.gen.Store(next)
	return next.id
}

// CacheStats describes the state of a registry's strategy cache.
type CacheStats struct {
	Generation  uint64 // Current cache generation, starting at 1
	Entries     int    // Strategies cached in the current generation
	Resolutions int64  // Strategies built since the registry was created
	Hits        int64  // Lookups served from the cache
}

func (c *strategyCache) stats() CacheStats {
	gen := c.gen.Load()
	n := 0
	gen.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return CacheStats{
		Generation:  gen.id,
		Entries:     n,
		Resolutions: c.resolutions.Load(),
		Hits:        c.hits.Load(),
	}
}
