// Package exprlang is an expression-only backend on expr-lang/expr. Scripts
// are single expressions (or ;-separated sequences) evaluated against the
// bindings. They cannot declare functions, so invocation resolves Go functions
// held in the bindings.
package exprlang

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/coerce"
	"zenoscript/pkg/engine"
)

const Name = "expr"

// Version of the expr-lang module this backend is built against.
const Version = "1.17"

type Backend struct{}

var _ engine.Factory = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Info() engine.Info {
	return engine.Info{
		Name:            Name,
		EngineName:      "expr-lang",
		EngineVersion:   Version,
		LanguageName:    "expr",
		LanguageVersion: Version,
		Extensions:      []string{"expr"},
		MimeTypes:       []string{"text/x-expr"},
		Names:           []string{"expr", "expr-lang"},
	}
}

func (b *Backend) Compile(_ context.Context, source, name string) (engine.Unit, error) {
	program, err := expr.Compile(source,
		expr.AllowUndefinedVariables(),
		expr.Function("decimal", toDecimal),
	)
	if err != nil {
		return nil, located(engine.KindCompilation, err, name)
	}
	return &unit{name: name, source: source, program: program}, nil
}

func (b *Backend) NewInstance(_ context.Context, u engine.Unit, vars bindings.Bindings) (engine.Instance, error) {
	eu, ok := u.(*unit)
	if !ok {
		return nil, fmt.Errorf("exprlang: unit %s was not compiled by this backend", u.Name())
	}
	if vars == nil {
		vars = bindings.New()
	}
	return &instance{unit: eu, vars: vars}, nil
}

func (b *Backend) MethodCallSyntax(obj, method string, args ...string) string {
	return fmt.Sprintf("%s.%s(%s)", obj, method, strings.Join(args, ", "))
}

func (b *Backend) OutputStatement(toDisplay string) string {
	return "print(" + strconv.Quote(toDisplay) + ")"
}

func (b *Backend) Program(statements ...string) string {
	return strings.Join(statements, "; ")
}

type unit struct {
	name    string
	source  string
	program *vm.Program
}

func (u *unit) Name() string   { return u.name }
func (u *unit) Source() string { return u.source }

type instance struct {
	unit *unit
	vars bindings.Bindings
}

func (i *instance) Unit() engine.Unit {
	return i.unit
}

func (i *instance) Run(ctx context.Context) (interface{}, error) {
	out, err := expr.Run(i.unit.program, i.env(ctx))
	if err != nil {
		return nil, located(engine.KindEvaluation, err, i.unit.name)
	}
	return out, nil
}

func (i *instance) Lookup(name string, arity int) (engine.Callable, bool) {
	fn, ok := i.function(name)
	if !ok {
		return nil, false
	}
	n, variadic := engine.Arity(fn.Type())
	if arity != n && !(variadic && arity >= n) {
		return nil, false
	}
	return engine.CallableFunc(func(ctx context.Context, args []interface{}) (interface{}, error) {
		return call(ctx, fn, args)
	}), true
}

func (i *instance) Dispatch(ctx context.Context, name string, args []interface{}) (interface{}, bool, error) {
	v, ok := i.vars.Get(name)
	if !ok {
		return nil, false, nil
	}
	if c, ok := v.(engine.Callable); ok {
		res, err := c.Call(ctx, args)
		return res, true, err
	}
	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, false, nil
	}
	res, err := call(ctx, fn, args)
	return res, true, err
}

func (i *instance) function(name string) (reflect.Value, bool) {
	v, ok := i.vars.Get(name)
	if !ok || v == nil {
		return reflect.Value{}, false
	}
	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return reflect.Value{}, false
	}
	return fn, true
}

// env flattens the bindings for one run. Go functions are wrapped so the
// expression can pass loosely typed arguments.
func (i *instance) env(ctx context.Context) map[string]interface{} {
	env := bindings.Snapshot(i.vars)
	for k, v := range env {
		if c, ok := v.(engine.Callable); ok {
			env[k] = wrapCallable(ctx, c)
			continue
		}
		if fn := reflect.ValueOf(v); fn.Kind() == reflect.Func && !fn.IsNil() {
			env[k] = wrapFunc(ctx, fn)
		}
	}
	if _, ok := env["print"]; !ok {
		env["print"] = i.print
	}
	return env
}

func (i *instance) print(args ...interface{}) (interface{}, error) {
	parts := make([]string, len(args))
	for n, a := range args {
		parts[n] = coerce.ToString(a)
	}
	_, err := fmt.Fprintln(i.writer(), strings.Join(parts, "\t"))
	return nil, err
}

func (i *instance) writer() io.Writer {
	if v, ok := i.vars.Get(engine.OutKey); ok {
		if w, ok := v.(io.Writer); ok {
			return w
		}
	}
	return os.Stdout
}

func wrapFunc(ctx context.Context, fn reflect.Value) func(args ...interface{}) (interface{}, error) {
	return func(args ...interface{}) (interface{}, error) {
		return call(ctx, fn, args)
	}
}

func wrapCallable(ctx context.Context, c engine.Callable) func(args ...interface{}) (interface{}, error) {
	return func(args ...interface{}) (interface{}, error) {
		return c.Call(ctx, args)
	}
}

func call(ctx context.Context, fn reflect.Value, args []interface{}) (interface{}, error) {
	values, err := engine.CallFunc(ctx, fn, args)
	if err != nil {
		return nil, err
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	}
	return values, nil
}

func toDecimal(params ...interface{}) (interface{}, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("decimal: expected 1 argument, got %d", len(params))
	}
	return coerce.ToDecimal(params[0])
}

// located maps expr's positioned errors. Columns are reported 1-based.
func located(kind engine.Kind, err error, name string) error {
	var fe *file.Error
	if errors.As(err, &fe) {
		col := fe.Column
		if fe.Line > 0 {
			col++
		}
		return engine.NewError(kind, fe.Message, name, fe.Line, col, err)
	}
	return engine.NewError(kind, err.Error(), name, 0, 0, err)
}
