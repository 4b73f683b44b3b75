package engine

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"zenoscript/pkg/metrics"
)

// Cache maps source text to compiled units. Each distinct source is compiled
// at most once while it stays cached; failed compilations are never stored.
type Cache struct {
	backend Backend
	ext     string
	label   string

	counter *atomic.Uint64
	group   singleflight.Group
	units   unitStore
}

// NewCache returns a cache in front of backend. size > 0 bounds it with an
// LRU; otherwise entries live as long as the cache.
func NewCache(backend Backend, size int) (*Cache, error) {
	var store unitStore = &mapStore{units: make(map[string]Unit)}
	if size > 0 {
		l, err := lru.New(size)
		if err != nil {
			return nil, fmt.Errorf("engine: cache: %w", err)
		}
		store = &lruStore{cache: l}
	}
	info := backend.Info()
	return &Cache{
		backend: backend,
		ext:     info.Extension(),
		label:   info.Name,
		counter: atomic.NewUint64(0),
		units:   store,
	}, nil
}

// GetOrCompile returns the unit cached for source, compiling it on a miss.
// Concurrent misses for the same source share one compilation.
func (c *Cache) GetOrCompile(ctx context.Context, source string) (Unit, error) {
	if u, ok := c.units.get(source); ok {
		metrics.CacheLookup(c.label, true)
		return u, nil
	}
	metrics.CacheLookup(c.label, false)

	v, err, _ := c.group.Do(source, func() (interface{}, error) {
		// a concurrent caller may have stored it between our miss and Do
		if u, ok := c.units.get(source); ok {
			return u, nil
		}
		name := c.nextName()
		u, err := c.backend.Compile(ctx, source, name)
		metrics.Compilation(c.label, err)
		if err != nil {
			return nil, translate(KindCompilation, err, name)
		}
		c.units.add(source, u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Unit), nil
}

// Len reports the number of cached units.
func (c *Cache) Len() int {
	return c.units.len()
}

// Purge drops every cached unit. The name counter keeps counting.
func (c *Cache) Purge() {
	c.units.purge()
}

func (c *Cache) nextName() string {
	return fmt.Sprintf("Script%d.%s", c.counter.Inc(), c.ext)
}

type unitStore interface {
	get(source string) (Unit, bool)
	add(source string, u Unit)
	len() int
	purge()
}

type mapStore struct {
	mu    sync.RWMutex
	units map[string]Unit
}

func (s *mapStore) get(source string) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[source]
	return u, ok
}

func (s *mapStore) add(source string, u Unit) {
	s.mu.Lock()
	s.units[source] = u
	s.mu.Unlock()
}

func (s *mapStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

func (s *mapStore) purge() {
	s.mu.Lock()
	s.units = make(map[string]Unit)
	s.mu.Unlock()
}

// lruStore is safe for concurrent use on its own.
type lruStore struct {
	cache *lru.Cache
}

func (s *lruStore) get(source string) (Unit, bool) {
	v, ok := s.cache.Get(source)
	if !ok {
		return nil, false
	}
	return v.(Unit), true
}

func (s *lruStore) add(source string, u Unit) {
	s.cache.Add(source, u)
}

func (s *lruStore) len() int {
	return s.cache.Len()
}

func (s *lruStore) purge() {
	s.cache.Purge()
}
