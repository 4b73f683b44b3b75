// Package app holds the process-wide dependencies shared by the CLI and the
// HTTP server: configuration, the engine registry and the script store.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"zenoscript/internal/config"
	"zenoscript/pkg/engine"
	"zenoscript/pkg/engine/exprlang"
	"zenoscript/pkg/engine/luaengine"
	"zenoscript/pkg/scriptstore"
)

type App struct {
	Config  config.Config
	Manager *engine.Manager
	Store   *scriptstore.Store
	Log     *slog.Logger

	mu      sync.Mutex
	engines map[string]*engine.Engine
}

// New registers the built-in backends. The store is opened separately with
// OpenStore since only the server needs it.
func New(cfg config.Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	m := engine.NewManager(
		engine.WithCacheSize(cfg.CacheSize),
		engine.WithLogger(log),
	)
	m.Register(luaengine.New())
	m.Register(exprlang.New())
	return &App{
		Config:  cfg,
		Manager: m,
		Log:     log,
		engines: make(map[string]*engine.Engine),
	}
}

// Engine returns the shared engine for a backend name or alias. An empty name
// selects the configured default. Aliases of one backend share an engine and
// so share its compilation cache.
func (a *App) Engine(name string) (*engine.Engine, error) {
	if name == "" {
		name = a.Config.Engine
	}
	b, ok := a.Manager.Backend(name)
	if !ok {
		return nil, fmt.Errorf("%w for name %q", engine.ErrUnknownEngine, name)
	}
	key := b.Info().Name

	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.engines[key]; ok {
		return e, nil
	}
	e, err := a.Manager.EngineByName(key)
	if err != nil {
		return nil, err
	}
	a.engines[key] = e
	return e, nil
}

// EngineForFile picks the backend from the file extension.
func (a *App) EngineForFile(path string) (*engine.Engine, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return a.Engine("")
	}
	b, ok := a.Manager.BackendByExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w for extension %q", engine.ErrUnknownEngine, strings.TrimPrefix(ext, "."))
	}
	return a.Engine(b.Info().Name)
}

// WithTimeout applies SCRIPT_EVAL_TIMEOUT, if configured.
func (a *App) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config.EvalTimeout > 0 {
		return context.WithTimeout(ctx, a.Config.EvalTimeout)
	}
	return context.WithCancel(ctx)
}

// OpenStore connects the script store and creates its table. Without a
// configured driver scripts live in an in-memory SQLite database.
func (a *App) OpenStore(ctx context.Context) error {
	db := a.Config.DB
	driver, dsn, maxOpen, maxIdle := db.DriverName(), db.DSN(), db.MaxOpen, db.MaxIdle
	if driver == "" {
		a.Log.Warn("DB_DRIVER not set, scripts are kept in memory")
		driver, dsn, maxOpen, maxIdle = "sqlite", ":memory:", 1, 1
	}

	store, err := scriptstore.Open(driver, dsn, maxOpen, maxIdle)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return multierr.Append(err, store.Close())
	}
	a.Store = store
	a.Log.Info("script store connected", "driver", store.Dialect().Name())
	return nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
