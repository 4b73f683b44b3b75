package bindings

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreScopeDelegation(t *testing.T) {
	global := FromMap(map[string]interface{}{"a": 1})
	engineScope := NewMap()
	call := Wrap(engineScope)
	require.NoError(t, call.BindGlobal(global))

	val, ok := call.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val)

	prev, existed := call.Put("a", 2)
	assert.False(t, existed, "put must not report the global value as previous")
	assert.Nil(t, prev)

	val, _ = call.Get("a")
	assert.Equal(t, 2, val)

	gval, _ := global.Get("a")
	assert.Equal(t, 1, gval, "writes never touch the global scope")

	eval, ok := engineScope.Get("a")
	assert.True(t, ok, "writes land in the wrapped root")
	assert.Equal(t, 2, eval)

	removed, ok := call.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, 2, removed)

	val, ok = call.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val, "falls back to global after local removal")

	_, ok = call.Remove("a")
	assert.False(t, ok, "remove never reaches into the global scope")
	_, ok = global.Get("a")
	assert.True(t, ok)
}

func TestStoreKeysAreLocal(t *testing.T) {
	global := FromMap(map[string]interface{}{"only_global": true, "shared": 1})
	call := New()
	require.NoError(t, call.BindGlobal(global))

	keys := call.Keys()
	assert.NotNil(t, keys)
	assert.Empty(t, keys)

	call.Put("shared", 2)
	call.Put("local", 3)
	assert.ElementsMatch(t, []string{"shared", "local"}, call.Keys())
	assert.NotContains(t, call.Keys(), "only_global")
}

func TestStoreGlobalIsOneHop(t *testing.T) {
	outer := FromMap(map[string]interface{}{"deep": "x"})
	middle := New()
	require.NoError(t, middle.BindGlobal(outer))
	middle.Put("mid", "y")

	call := New()
	require.NoError(t, call.BindGlobal(middle))

	v, ok := call.Get("mid")
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = call.Get("deep")
	assert.False(t, ok, "the global's own global must not be consulted")
}

func TestStoreBindGlobal(t *testing.T) {
	t.Run("same table twice is a no-op", func(t *testing.T) {
		g := NewMap()
		s := New()
		require.NoError(t, s.BindGlobal(g))
		assert.NoError(t, s.BindGlobal(g))
		assert.Same(t, g, s.Global())
	})

	t.Run("different table is rejected", func(t *testing.T) {
		s := New()
		require.NoError(t, s.BindGlobal(NewMap()))
		assert.ErrorIs(t, s.BindGlobal(NewMap()), ErrGlobalBound)
	})

	t.Run("nil is ignored", func(t *testing.T) {
		s := New()
		assert.NoError(t, s.BindGlobal(nil))
		assert.Nil(t, s.Global())
	})
}

func TestStoreSnapshot(t *testing.T) {
	global := FromMap(map[string]interface{}{"a": 1, "b": 1})
	s := New()
	require.NoError(t, s.BindGlobal(global))
	s.Put("b", 2)
	s.Put("c", 3)

	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2, "c": 3}, s.Snapshot())
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 1}, Snapshot(global))
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "call", CallScope.String())
	assert.Equal(t, "engine", EngineScope.String())
	assert.Equal(t, "global", GlobalScope.String())
	assert.Equal(t, "unknown", Scope(42).String())
}

func TestMapConcurrentAccess(t *testing.T) {
	m := NewMap()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			m.Put(key, i)
			m.Get(key)
			m.Keys()
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Keys(), 16)
}
