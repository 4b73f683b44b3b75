package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenoscript/internal/config"
	"zenoscript/pkg/engine"
)

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestEngineSharedPerBackend(t *testing.T) {
	a := newTestApp(t, config.Config{Engine: "lua"})

	def, err := a.Engine("")
	require.NoError(t, err)
	alias, err := a.Engine("GopherLua")
	require.NoError(t, err)
	assert.Same(t, def, alias)
	assert.Equal(t, "lua", def.Info().Name)

	byFile, err := a.EngineForFile("scripts/sum.expr")
	require.NoError(t, err)
	assert.Equal(t, "expr", byFile.Info().Name)

	_, err = a.Engine("cobol")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
	_, err = a.EngineForFile("x.cob")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
}

func TestWithTimeout(t *testing.T) {
	a := newTestApp(t, config.Config{EvalTimeout: time.Second})
	ctx, cancel := a.WithTimeout(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	a = newTestApp(t, config.Config{})
	ctx, cancel = a.WithTimeout(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestOpenStoreInMemory(t *testing.T) {
	a := newTestApp(t, config.Config{})
	require.NoError(t, a.OpenStore(context.Background()))
	require.NotNil(t, a.Store)

	_, err := a.Store.Put(context.Background(), "hello", "lua", "return 1")
	require.NoError(t, err)
}
