package engine

import (
	"fmt"
	"io"
	"os"
	"sync"

	"zenoscript/pkg/bindings"
)

// Context is the host-side execution context of an evaluation: engine and
// global bindings plus the script's standard streams. Scripts see it under the
// name "context".
type Context struct {
	mu          sync.RWMutex
	engineScope bindings.Bindings
	globalScope bindings.Bindings

	Reader      io.Reader
	Writer      io.Writer
	ErrorWriter io.Writer
}

// NewContext returns a context with empty engine bindings, no global bindings
// and the process standard streams.
func NewContext() *Context {
	return &Context{
		engineScope: bindings.NewMap(),
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}
}

// Bindings returns the table for scope, or nil.
func (c *Context) Bindings(scope bindings.Scope) bindings.Bindings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch scope {
	case bindings.EngineScope:
		return c.engineScope
	case bindings.GlobalScope:
		return c.globalScope
	}
	return nil
}

// SetBindings replaces the table for scope. The engine scope cannot be nil.
func (c *Context) SetBindings(b bindings.Bindings, scope bindings.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch scope {
	case bindings.EngineScope:
		if b == nil {
			return fmt.Errorf("engine: engine scope bindings cannot be nil")
		}
		c.engineScope = b
	case bindings.GlobalScope:
		c.globalScope = b
	default:
		return fmt.Errorf("engine: cannot set bindings for %s scope", scope)
	}
	return nil
}

// Attribute looks name up in the engine scope, then the global scope.
func (c *Context) Attribute(name string) (interface{}, bool) {
	if v, ok := c.Bindings(bindings.EngineScope).Get(name); ok {
		return v, true
	}
	if g := c.Bindings(bindings.GlobalScope); g != nil {
		return g.Get(name)
	}
	return nil, false
}

// AttributesScope reports the lowest scope defining name.
func (c *Context) AttributesScope(name string) (bindings.Scope, bool) {
	if _, ok := c.Bindings(bindings.EngineScope).Get(name); ok {
		return bindings.EngineScope, true
	}
	if g := c.Bindings(bindings.GlobalScope); g != nil {
		if _, ok := g.Get(name); ok {
			return bindings.GlobalScope, true
		}
	}
	return 0, false
}

func (c *Context) SetAttribute(name string, value interface{}, scope bindings.Scope) error {
	b := c.Bindings(scope)
	if b == nil {
		return fmt.Errorf("engine: no bindings for %s scope", scope)
	}
	b.Put(name, value)
	return nil
}

func (c *Context) RemoveAttribute(name string, scope bindings.Scope) (interface{}, bool) {
	b := c.Bindings(scope)
	if b == nil {
		return nil, false
	}
	return b.Remove(name)
}

// withEngineScope copies c with b as its engine scope and the same streams and global scope.
func (c *Context) withEngineScope(b bindings.Bindings) *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Context{
		engineScope: b,
		globalScope: c.globalScope,
		Reader:      c.Reader,
		Writer:      c.Writer,
		ErrorWriter: c.ErrorWriter,
	}
}

// PrintWriter is the printable sink injected into scripts as "out".
type PrintWriter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewPrintWriter wraps w, reusing it when it already is a PrintWriter.
func NewPrintWriter(w io.Writer) *PrintWriter {
	if pw, ok := w.(*PrintWriter); ok {
		return pw
	}
	if w == nil {
		w = io.Discard
	}
	return &PrintWriter{w: w}
}

func (p *PrintWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.w.Write(b)
	if err != nil && p.err == nil {
		p.err = err
	}
	return n, err
}

func (p *PrintWriter) Print(a ...interface{}) {
	fmt.Fprint(p, a...)
}

func (p *PrintWriter) Println(a ...interface{}) {
	fmt.Fprintln(p, a...)
}

func (p *PrintWriter) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p, format, a...)
}

// Err returns the first write error, if any.
func (p *PrintWriter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
