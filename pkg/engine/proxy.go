package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"zenoscript/pkg/coerce"
)

// GetInterface fills ptr, a pointer to a struct of func fields, with
// functions that invoke the same-named script callables on target.
//
//	var calc struct {
//		Add  func(a, b int) (int, error)
//		Greet func(ctx context.Context, name string) string `script:"greet"`
//	}
//	err := eng.GetInterface(nil, &calc)
//
// The script name of a field is its `script` tag, or the field name with its
// first letter lower-cased. A tag of "-" leaves the field alone. A nil target
// is resolved on every call against the engine's current session, so a proxy
// may be built before anything is evaluated.
//
// If a func's last result is an error, invocation failures are returned
// there. Otherwise the function panics with the *ScriptError.
func (e *Engine) GetInterface(target interface{}, ptr interface{}) error {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Ptr || pv.IsNil() || pv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("engine: GetInterface needs a non-nil pointer to a struct, got %T", ptr)
	}
	sv := pv.Elem()
	st := sv.Type()

	bound := 0
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Type.Kind() != reflect.Func || !field.IsExported() {
			continue
		}
		name, ok := field.Tag.Lookup("script")
		if name == "-" {
			continue
		}
		if !ok || name == "" {
			name = scriptName(field.Name)
		}
		sv.Field(i).Set(reflect.MakeFunc(field.Type, e.trampoline(target, name, field.Type)))
		bound++
	}
	if bound == 0 {
		return fmt.Errorf("engine: %s has no exported func fields", st)
	}
	return nil
}

// Interface is GetInterface reporting failure as false.
func (e *Engine) Interface(target interface{}, ptr interface{}) bool {
	return e.GetInterface(target, ptr) == nil
}

func (e *Engine) MustInterface(target interface{}, ptr interface{}) {
	if err := e.GetInterface(target, ptr); err != nil {
		panic(err)
	}
}

func (e *Engine) trampoline(target interface{}, name string, ft reflect.Type) func([]reflect.Value) []reflect.Value {
	numOut := ft.NumOut()
	hasErr := numOut > 0 && ft.Out(numOut-1) == errorType
	values := numOut
	if hasErr {
		values--
	}

	fail := func(err error) []reflect.Value {
		if !hasErr {
			panic(err)
		}
		out := make([]reflect.Value, numOut)
		for i := 0; i < values; i++ {
			out[i] = reflect.Zero(ft.Out(i))
		}
		out[numOut-1] = reflect.ValueOf(&err).Elem()
		return out
	}

	return func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if len(in) > 0 && ft.In(0) == contextType {
			if c, ok := in[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			in = in[1:]
		}

		args := make([]interface{}, 0, len(in))
		for i, v := range in {
			if ft.IsVariadic() && i == len(in)-1 {
				for j := 0; j < v.Len(); j++ {
					args = append(args, v.Index(j).Interface())
				}
				continue
			}
			args = append(args, v.Interface())
		}

		res, err := e.Invoke(ctx, target, name, args...)
		if err != nil {
			return fail(err)
		}

		out, err := coerceResults(res, ft, values)
		if err != nil {
			return fail(NewError(KindInvocation, fmt.Sprintf("%s: %v", name, err), "", 0, 0, err))
		}
		if hasErr {
			out = append(out, reflect.Zero(errorType))
		}
		return out
	}
}

var errResultCount = errors.New("result count mismatch")

// coerceResults converts a script result to the first n declared results of ft.
// Several results are expected as a slice.
func coerceResults(res interface{}, ft reflect.Type, n int) ([]reflect.Value, error) {
	out := make([]reflect.Value, 0, n+1)
	switch n {
	case 0:
		return out, nil
	case 1:
		v, err := coerce.ToType(res, ft.Out(0))
		if err != nil {
			return nil, err
		}
		return append(out, v), nil
	}

	items, ok := res.([]interface{})
	if !ok || len(items) != n {
		return nil, fmt.Errorf("%w: want %d values", errResultCount, n)
	}
	for i, item := range items {
		v, err := coerce.ToType(item, ft.Out(i))
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
