package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/metrics"
)

// Names injected into every execution frame.
const (
	ContextKey = "context"
	OutKey     = "out"
)

// Engine adapts one Backend to the compile, bind, evaluate and invoke
// contract. It is safe for concurrent use, with the caveat documented on
// Session: the implicit "last evaluated" target is shared.
type Engine struct {
	backend Backend
	info    Info
	cache   *Cache
	log     *slog.Logger

	mu  sync.RWMutex
	ctx *Context

	session sessionSlot
}

type options struct {
	cacheSize int
	logger    *slog.Logger
	context   *Context
	global    bindings.Bindings
}

type Option func(*options)

// WithCacheSize bounds the compilation cache. Zero keeps it unbounded.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContext sets the default context used by Eval and EvalWithBindings.
func WithContext(c *Context) Option {
	return func(o *options) { o.context = c }
}

// WithGlobalBindings sets the global scope of the default context.
func WithGlobalBindings(g bindings.Bindings) Option {
	return func(o *options) { o.global = g }
}

func New(backend Backend, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("engine: nil backend")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.context == nil {
		o.context = NewContext()
	}
	if o.global != nil {
		if err := o.context.SetBindings(o.global, bindings.GlobalScope); err != nil {
			return nil, err
		}
	}

	cache, err := NewCache(backend, o.cacheSize)
	if err != nil {
		return nil, err
	}
	info := backend.Info()
	return &Engine{
		backend: backend,
		info:    info,
		cache:   cache,
		log:     o.logger.With("engine", info.Name),
		ctx:     o.context,
	}, nil
}

func (e *Engine) Info() Info {
	return e.info
}

func (e *Engine) Backend() Backend {
	return e.backend
}

func (e *Engine) Cache() *Cache {
	return e.cache
}

// Context returns the default context.
func (e *Engine) Context() *Context {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ctx
}

func (e *Engine) SetContext(c *Context) {
	if c == nil {
		return
	}
	e.mu.Lock()
	e.ctx = c
	e.mu.Unlock()
}

// NewContext returns a context with fresh engine bindings that shares the
// default context's global bindings and streams.
func (e *Engine) NewContext() *Context {
	return e.Context().withEngineScope(bindings.NewMap())
}

// CreateBindings returns an empty store suitable for EvalWithBindings.
func (e *Engine) CreateBindings() *bindings.Store {
	return bindings.New()
}

// Session returns the implicit session left by the last successful
// evaluation, or nil.
func (e *Engine) Session() *Session {
	return e.session.load()
}

// Eval evaluates source against the default context.
func (e *Engine) Eval(ctx context.Context, source string) (interface{}, error) {
	return e.EvalString(ctx, source, e.Context())
}

// EvalWithBindings evaluates source with b as the engine scope and the default
// context's global scope and streams.
func (e *Engine) EvalWithBindings(ctx context.Context, source string, b bindings.Bindings) (interface{}, error) {
	if b == nil {
		return e.Eval(ctx, source)
	}
	return e.EvalString(ctx, source, e.Context().withEngineScope(b))
}

// EvalString compiles source through the cache and evaluates it.
func (e *Engine) EvalString(ctx context.Context, source string, sc *Context) (interface{}, error) {
	unit, err := e.cache.GetOrCompile(ctx, source)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, unit, sc)
}

// EvalReader drains r fully, then behaves like EvalString.
func (e *Engine) EvalReader(ctx context.Context, r io.Reader, sc *Context) (interface{}, error) {
	source, err := readSource(r)
	if err != nil {
		return nil, err
	}
	return e.EvalString(ctx, source, sc)
}

// Evaluate runs unit in a fresh execution frame and makes it the engine's
// current session.
func (e *Engine) Evaluate(ctx context.Context, unit Unit, sc *Context) (interface{}, error) {
	_, result, err := e.EvaluateSession(ctx, unit, sc)
	return result, err
}

// EvaluateSession is Evaluate that also hands back the resulting session.
// The returned session stays valid after later evaluations replace the
// engine's implicit one.
func (e *Engine) EvaluateSession(ctx context.Context, unit Unit, sc *Context) (*Session, interface{}, error) {
	sess, result, err := e.evaluate(ctx, unit, sc)
	if err != nil {
		return nil, nil, err
	}
	e.session.store(sess)
	return sess, result, nil
}

// Compile compiles source through the cache without running it.
func (e *Engine) Compile(ctx context.Context, source string) (*CompiledScript, error) {
	unit, err := e.cache.GetOrCompile(ctx, source)
	if err != nil {
		return nil, err
	}
	return &CompiledScript{engine: e, unit: unit}, nil
}

func (e *Engine) CompileReader(ctx context.Context, r io.Reader) (*CompiledScript, error) {
	source, err := readSource(r)
	if err != nil {
		return nil, err
	}
	return e.Compile(ctx, source)
}

func (e *Engine) evaluate(ctx context.Context, unit Unit, sc *Context) (sess *Session, result interface{}, err error) {
	if unit == nil {
		return nil, nil, notCompiled()
	}
	if sc == nil {
		sc = e.Context()
	}

	started := time.Now()
	defer func() {
		metrics.Evaluation(e.info.Name, started, err)
	}()
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			e.log.Error("panic recovered during evaluation",
				"unit", unit.Name(),
				"panic", r,
				"stack", stack,
			)
			sess, result = nil, nil
			err = NewError(KindEvaluation, fmt.Sprintf("panic: %v", r), unit.Name(), 0, 0, nil)
		}
	}()

	frame := bindings.Wrap(sc.Bindings(bindings.EngineScope))
	frame.Put(ContextKey, sc)
	frame.Put(OutKey, NewPrintWriter(sc.Writer))
	if g := sc.Bindings(bindings.GlobalScope); g != nil {
		if err := frame.BindGlobal(g); err != nil {
			return nil, nil, translate(KindEvaluation, err, unit.Name())
		}
	}

	inst, err := e.backend.NewInstance(ctx, unit, frame)
	if err != nil {
		se := translate(KindEvaluation, err, unit.Name())
		e.log.Error("failed to instantiate script", "unit", unit.Name(), "error", se)
		return nil, nil, se
	}

	result, err = inst.Run(ctx)
	if err != nil {
		se := translate(KindEvaluation, err, unit.Name())
		e.log.Error("script evaluation failed", "unit", unit.Name(), "error", se)
		return nil, nil, se
	}
	return &Session{unit: unit, instance: inst}, result, nil
}

func readSource(r io.Reader) (string, error) {
	if r == nil {
		return "", NewError(KindIO, "nil reader", "", 0, 0, nil)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", NewError(KindIO, err.Error(), "", 0, 0, err)
	}
	return string(b), nil
}

// CompiledScript is a unit bound to the engine that compiled it.
type CompiledScript struct {
	engine *Engine
	unit   Unit
}

func (c *CompiledScript) Engine() *Engine {
	return c.engine
}

func (c *CompiledScript) Unit() Unit {
	return c.unit
}

// Eval evaluates the script in sc, or the engine's default context when sc is nil.
func (c *CompiledScript) Eval(ctx context.Context, sc *Context) (interface{}, error) {
	return c.engine.Evaluate(ctx, c.unit, sc)
}

func (c *CompiledScript) EvalWithBindings(ctx context.Context, b bindings.Bindings) (interface{}, error) {
	sc := c.engine.Context()
	if b != nil {
		sc = sc.withEngineScope(b)
	}
	return c.engine.Evaluate(ctx, c.unit, sc)
}
