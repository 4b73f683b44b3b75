package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"zenoscript/pkg/bindings"
)

var ErrUnknownEngine = errors.New("engine: no backend registered")

// Factory is a backend that can also generate source snippets.
type Factory interface {
	Backend
	Syntax
}

// Manager is a registry of backends looked up by name, file extension or MIME
// type. Every engine it creates shares the manager's global bindings.
type Manager struct {
	mu     sync.RWMutex
	global bindings.Bindings
	opts   []Option

	backends []Backend
	byName   map[string]Backend
	byExt    map[string]Backend
	byMime   map[string]Backend
}

// NewManager returns an empty registry. opts apply to every engine it creates.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		global: bindings.NewMap(),
		opts:   opts,
		byName: make(map[string]Backend),
		byExt:  make(map[string]Backend),
		byMime: make(map[string]Backend),
	}
}

// Register adds b under every name, extension and MIME type its Info lists.
// Later registrations win on conflicts.
func (m *Manager) Register(b Backend) {
	info := b.Info()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends = append(m.backends, b)
	for _, n := range append([]string{info.Name}, info.Names...) {
		if n != "" {
			m.byName[strings.ToLower(n)] = b
		}
	}
	for _, ext := range info.Extensions {
		m.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = b
	}
	for _, mt := range info.MimeTypes {
		m.byMime[strings.ToLower(mt)] = b
	}
}

// Infos lists the registered backends sorted by name.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.backends))
	for _, b := range m.backends {
		out = append(out, b.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) GlobalBindings() bindings.Bindings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.global
}

// SetGlobalBindings replaces the global table for engines created afterwards.
func (m *Manager) SetGlobalBindings(b bindings.Bindings) {
	if b == nil {
		return
	}
	m.mu.Lock()
	m.global = b
	m.mu.Unlock()
}

func (m *Manager) Put(key string, value interface{}) {
	m.GlobalBindings().Put(key, value)
}

func (m *Manager) Get(key string) (interface{}, bool) {
	return m.GlobalBindings().Get(key)
}

func (m *Manager) Backend(name string) (Backend, bool) {
	return m.find(m.byName, strings.ToLower(name))
}

func (m *Manager) BackendByExtension(ext string) (Backend, bool) {
	return m.find(m.byExt, strings.ToLower(strings.TrimPrefix(ext, ".")))
}

func (m *Manager) EngineByName(name string) (*Engine, error) {
	return m.engine(m.byName, strings.ToLower(name), "name")
}

func (m *Manager) EngineByExtension(ext string) (*Engine, error) {
	return m.engine(m.byExt, strings.ToLower(strings.TrimPrefix(ext, ".")), "extension")
}

func (m *Manager) EngineByMimeType(mime string) (*Engine, error) {
	return m.engine(m.byMime, strings.ToLower(mime), "MIME type")
}

// Syntax returns the snippet generator of the named backend, if it has one.
func (m *Manager) Syntax(name string) (Syntax, bool) {
	b, ok := m.Backend(name)
	if !ok {
		return nil, false
	}
	s, ok := b.(Syntax)
	return s, ok
}

func (m *Manager) find(table map[string]Backend, key string) (Backend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := table[key]
	return b, ok
}

func (m *Manager) engine(table map[string]Backend, key, what string) (*Engine, error) {
	b, ok := m.find(table, key)
	if !ok {
		return nil, fmt.Errorf("%w for %s %q", ErrUnknownEngine, what, key)
	}
	opts := append([]Option{WithGlobalBindings(m.GlobalBindings())}, m.opts...)
	return New(b, opts...)
}
