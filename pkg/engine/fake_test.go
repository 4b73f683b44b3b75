package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"zenoscript/pkg/bindings"
)

// fakeProgram is what a fake source "compiles" to.
type fakeProgram struct {
	run     func(ctx context.Context, vars bindings.Bindings) (interface{}, error)
	funcs   map[string]func(args []interface{}) (interface{}, error) // keyed by name/arity
	dynamic map[string]func(args []interface{}) (interface{}, error)
}

type fakeBackend struct {
	mu       sync.Mutex
	compiles int
	programs map[string]*fakeProgram
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{programs: make(map[string]*fakeProgram)}
}

func (b *fakeBackend) define(source string, p *fakeProgram) {
	b.mu.Lock()
	b.programs[source] = p
	b.mu.Unlock()
}

func (b *fakeBackend) compileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.compiles
}

func (b *fakeBackend) Info() Info {
	return Info{
		Name:       "fake",
		EngineName: "Fake Engine",
		Extensions: []string{"fake"},
		MimeTypes:  []string{"text/x-fake"},
		Names:      []string{"fakescript"},
	}
}

func (b *fakeBackend) Compile(_ context.Context, source, name string) (Unit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compiles++
	if strings.HasPrefix(source, "syntax error") {
		return nil, NewError(KindCompilation, "unexpected token", name, 3, 7, nil)
	}
	p, ok := b.programs[source]
	if !ok {
		p = &fakeProgram{}
	}
	return &fakeUnit{name: name, source: source, program: p}, nil
}

func (b *fakeBackend) NewInstance(_ context.Context, unit Unit, vars bindings.Bindings) (Instance, error) {
	u, ok := unit.(*fakeUnit)
	if !ok {
		return nil, fmt.Errorf("foreign unit %T", unit)
	}
	return &fakeInstance{unit: u, vars: vars}, nil
}

type fakeUnit struct {
	name    string
	source  string
	program *fakeProgram
}

func (u *fakeUnit) Name() string   { return u.name }
func (u *fakeUnit) Source() string { return u.source }

type fakeInstance struct {
	unit *fakeUnit
	vars bindings.Bindings
}

func (i *fakeInstance) Unit() Unit { return i.unit }

func (i *fakeInstance) Run(ctx context.Context) (interface{}, error) {
	if i.unit.program.run == nil {
		return nil, nil
	}
	return i.unit.program.run(ctx, i.vars)
}

func (i *fakeInstance) Lookup(name string, arity int) (Callable, bool) {
	fn, ok := i.unit.program.funcs[fmt.Sprintf("%s/%d", name, arity)]
	if !ok {
		return nil, false
	}
	return CallableFunc(func(_ context.Context, args []interface{}) (interface{}, error) {
		return fn(args)
	}), true
}

func (i *fakeInstance) Dispatch(_ context.Context, name string, args []interface{}) (interface{}, bool, error) {
	fn, ok := i.unit.program.dynamic[name]
	if !ok {
		return nil, false, nil
	}
	res, err := fn(args)
	return res, true, err
}
