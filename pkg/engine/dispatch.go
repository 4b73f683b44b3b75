package engine

import (
	"context"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"zenoscript/pkg/coerce"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// FuncCallable wraps a Go function so scripts and the invoker can call it with
// loosely typed arguments. A leading context.Context parameter receives the
// call's context and is not counted as an argument. A trailing error result
// becomes the call's error.
func FuncCallable(fn interface{}) (Callable, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("engine: %T is not a function", fn)
	}
	return reflectCallable{fn: v}, nil
}

// Arity reports how many script arguments fn takes and whether it accepts more.
func Arity(fn reflect.Type) (n int, variadic bool) {
	n = fn.NumIn()
	if n > 0 && fn.In(0) == contextType {
		n--
	}
	if fn.IsVariadic() {
		return n - 1, true
	}
	return n, false
}

func acceptsArity(fn reflect.Type, arity int) bool {
	n, variadic := Arity(fn)
	if variadic {
		return arity >= n
	}
	return arity == n
}

// lookupMethod resolves name on a Go value by exported method name and arity.
// "greet" matches the method Greet.
func lookupMethod(target interface{}, name string, arity int) (Callable, bool) {
	if target == nil || name == "" {
		return nil, false
	}
	v := reflect.ValueOf(target)
	m := v.MethodByName(ExportedName(name))
	if !m.IsValid() {
		m = v.MethodByName(name)
	}
	if !m.IsValid() || !acceptsArity(m.Type(), arity) {
		return nil, false
	}
	return reflectCallable{fn: m}, true
}

type reflectCallable struct {
	fn reflect.Value
}

func (c reflectCallable) Call(ctx context.Context, args []interface{}) (interface{}, error) {
	values, err := CallFunc(ctx, c.fn, args)
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

// CallFunc calls fn with loosely typed args, converting each to the declared
// parameter type. It returns every result except a trailing error, which
// becomes the returned error when non-nil.
func CallFunc(ctx context.Context, fn reflect.Value, args []interface{}) ([]interface{}, error) {
	in, err := convertArgs(ctx, fn.Type(), args)
	if err != nil {
		return nil, err
	}
	out := fn.Call(in)
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	values := make([]interface{}, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, nil
}

func convertArgs(ctx context.Context, ft reflect.Type, args []interface{}) ([]reflect.Value, error) {
	if !acceptsArity(ft, len(args)) {
		n, _ := Arity(ft)
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}

	in := make([]reflect.Value, 0, ft.NumIn()+len(args))
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}

	for i, arg := range args {
		var pt reflect.Type
		idx := i + offset
		if ft.IsVariadic() && idx >= ft.NumIn()-1 {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(idx)
		}
		v, err := coerce.ToType(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// ExportedName upper-cases the first rune of a script-side name.
func ExportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func scriptName(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToLower(r)) + field[size:]
}
