package bindings

import (
	"errors"
	"sort"
	"sync"
)

// Bindings is a string-keyed variable table shared between host code and scripts.
type Bindings interface {
	// Get returns the value stored under key.
	Get(key string) (interface{}, bool)
	// Put stores value under key and returns the previous value, if any.
	Put(key string, value interface{}) (interface{}, bool)
	// Remove deletes key and returns the removed value, if any.
	Remove(key string) (interface{}, bool)
	// Keys lists the stored keys. An empty table yields an empty, non-nil slice.
	Keys() []string
}

// Scope names the level a Bindings instance lives at.
type Scope int

const (
	CallScope Scope = iota
	EngineScope
	GlobalScope
)

func (s Scope) String() string {
	switch s {
	case CallScope:
		return "call"
	case EngineScope:
		return "engine"
	case GlobalScope:
		return "global"
	}
	return "unknown"
}

var ErrGlobalBound = errors.New("bindings: a different global scope is already bound")

// Map is the plain thread-safe Bindings implementation.
type Map struct {
	mu   sync.RWMutex
	vars map[string]interface{}
}

func NewMap() *Map {
	return &Map{vars: make(map[string]interface{})}
}

// FromMap copies m into a new Map.
func FromMap(m map[string]interface{}) *Map {
	b := &Map{vars: make(map[string]interface{}, len(m))}
	for k, v := range m {
		b.vars[k] = v
	}
	return b
}

func (m *Map) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.vars[key]
	return val, ok
}

func (m *Map) Put(key string, value interface{}) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.vars[key]
	m.vars[key] = value
	return prev, ok
}

func (m *Map) Remove(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.vars[key]
	if ok {
		delete(m.vars, key)
	}
	return prev, ok
}

func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.vars))
	for k := range m.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns a shallow copy of the table.
func (m *Map) ToMap() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]interface{}, len(m.vars))
	for k, v := range m.vars {
		out[k] = v
	}
	return out
}

// Reset clears every entry.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.vars {
		delete(m.vars, k)
	}
}

// Store layers a root table over an optional global table.
//
// Writes always land in the root. Reads consult the root first and fall back
// to the global table's own entries, one hop only: a global Store's global is
// never consulted. Keys reports root keys only.
type Store struct {
	root Bindings

	mu     sync.RWMutex
	global Bindings
}

// New returns a Store over a fresh, empty root.
func New() *Store {
	return &Store{root: NewMap()}
}

// Wrap returns a Store whose root is the given table. Writes through the
// Store are visible to every other holder of root.
func Wrap(root Bindings) *Store {
	if root == nil {
		root = NewMap()
	}
	return &Store{root: root}
}

// Root returns the table writes go to.
func (s *Store) Root() Bindings {
	return s.root
}

// Global returns the linked global table, or nil.
func (s *Store) Global() Bindings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// BindGlobal links g as the global fallback. Binding the same table again is a
// no-op; binding a different one once a link exists fails with ErrGlobalBound.
func (s *Store) BindGlobal(g Bindings) error {
	if g == nil {
		return nil
	}
	g = local(g)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global != nil {
		if s.global == g {
			return nil
		}
		return ErrGlobalBound
	}
	s.global = g
	return nil
}

func (s *Store) Get(key string) (interface{}, bool) {
	if val, ok := s.root.Get(key); ok {
		return val, true
	}
	if g := s.Global(); g != nil {
		return g.Get(key)
	}
	return nil, false
}

func (s *Store) Put(key string, value interface{}) (interface{}, bool) {
	return s.root.Put(key, value)
}

func (s *Store) Remove(key string) (interface{}, bool) {
	return s.root.Remove(key)
}

func (s *Store) Keys() []string {
	keys := s.root.Keys()
	if keys == nil {
		return []string{}
	}
	return keys
}

// Snapshot flattens the visible view into a map: global entries first, root
// entries override them.
func (s *Store) Snapshot() map[string]interface{} {
	out := make(map[string]interface{})
	if g := s.Global(); g != nil {
		copyInto(out, g)
	}
	copyInto(out, s.root)
	return out
}

// Snapshot flattens any Bindings into a map.
func Snapshot(b Bindings) map[string]interface{} {
	if s, ok := b.(*Store); ok {
		return s.Snapshot()
	}
	out := make(map[string]interface{})
	if b != nil {
		copyInto(out, b)
	}
	return out
}

func copyInto(dst map[string]interface{}, b Bindings) {
	if m, ok := b.(*Map); ok {
		for k, v := range m.ToMap() {
			dst[k] = v
		}
		return
	}
	for _, k := range b.Keys() {
		if v, ok := b.Get(k); ok {
			dst[k] = v
		}
	}
}

// local strips a Store down to its root so the global link stays one hop deep.
func local(b Bindings) Bindings {
	if s, ok := b.(*Store); ok {
		return s.root
	}
	return b
}
