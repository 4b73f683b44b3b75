package luaengine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
	lua "github.com/yuin/gopher-lua"

	"zenoscript/pkg/coerce"
	"zenoscript/pkg/engine"
)

const objectType = "zenoscript.object"

// toLua converts a host value. Scalars, slices and maps are copied; functions
// become callable Lua functions; anything else is wrapped as userdata whose
// methods and exported fields are reachable by their lower-cased names.
func toLua(L *lua.LState, v interface{}) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case []byte:
		return lua.LString(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case decimal.Decimal:
		return lua.LNumber(x.InexactFloat64())
	case []interface{}:
		tb := L.CreateTable(len(x), 0)
		for _, item := range x {
			tb.Append(toLua(L, item))
		}
		return tb
	case map[string]interface{}:
		tb := L.CreateTable(0, len(x))
		for k, item := range x {
			tb.RawSetString(k, toLua(L, item))
		}
		return tb
	case engine.Callable:
		return L.NewFunction(callableFunction(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		f, err := coerce.ToFloat64(v)
		if err == nil {
			return lua.LNumber(f)
		}
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return lua.LNil
		}
		tb := L.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			tb.Append(toLua(L, rv.Index(i).Interface()))
		}
		return tb
	case reflect.Map:
		if rv.IsNil() {
			return lua.LNil
		}
		tb := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			tb.RawSetString(coerce.ToString(iter.Key().Interface()), toLua(L, iter.Value().Interface()))
		}
		return tb
	case reflect.Func:
		if rv.IsNil() {
			return lua.LNil
		}
		return L.NewFunction(goFunction(rv, nil))
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
	}
	return newObject(L, v)
}

// fromLua converts a Lua value for the host. Tables with consecutive integer
// keys from 1 become slices, other tables string-keyed maps. Functions become
// engine.Callable values bound to L.
func fromLua(L *lua.LState, v lua.LValue) interface{} {
	return fromLuaSeen(L, v, make(map[*lua.LTable]bool))
}

func fromLuaSeen(L *lua.LState, v lua.LValue, seen map[*lua.LTable]bool) interface{} {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case *lua.LUserData:
		return x.Value
	case *lua.LFunction:
		return luaCallable(L, x)
	case *lua.LTable:
		if seen[x] {
			return nil
		}
		seen[x] = true
		defer delete(seen, x)
		return tableValue(L, x, seen)
	}
	if v == lua.LNil {
		return nil
	}
	return v.String()
}

func tableValue(L *lua.LState, tb *lua.LTable, seen map[*lua.LTable]bool) interface{} {
	count := 0
	tb.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n := tb.MaxN(); n > 0 && n == count {
		out := make([]interface{}, n)
		for i := 1; i <= n; i++ {
			out[i-1] = fromLuaSeen(L, tb.RawGetInt(i), seen)
		}
		return out
	}

	out := make(map[string]interface{}, count)
	tb.ForEach(func(k, item lua.LValue) {
		var key string
		switch kk := k.(type) {
		case lua.LString:
			key = string(kk)
		case lua.LNumber:
			key = coerce.ToString(float64(kk))
		default:
			key = k.String()
		}
		out[key] = fromLuaSeen(L, item, seen)
	})
	return out
}

// popResults pops everything above top and returns nothing, the single
// value, or a slice of values.
func popResults(L *lua.LState, top int) interface{} {
	n := L.GetTop() - top
	if n <= 0 {
		return nil
	}
	values := make([]interface{}, n)
	for i := 0; i < n; i++ {
		values[i] = fromLua(L, L.Get(top+1+i))
	}
	L.Pop(n)
	if n == 1 {
		return values[0]
	}
	return values
}

func luaArgs(L *lua.LState, from int) []interface{} {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]interface{}, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, fromLua(L, L.Get(i)))
	}
	return args
}

func stateContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// goFunction exposes fn to Lua. When self is set and passed as the first
// argument (method-call syntax), it is dropped.
func goFunction(fn reflect.Value, self *lua.LUserData) lua.LGFunction {
	return func(L *lua.LState) int {
		from := 1
		if self != nil && L.GetTop() >= 1 && L.Get(1) == self {
			from = 2
		}
		values, err := engine.CallFunc(stateContext(L), fn, luaArgs(L, from))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for _, v := range values {
			L.Push(toLua(L, v))
		}
		return len(values)
	}
}

func callableFunction(c engine.Callable) lua.LGFunction {
	return func(L *lua.LState) int {
		res, err := c.Call(stateContext(L), luaArgs(L, 1))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(toLua(L, res))
		return 1
	}
}

// luaCallable lets host code call back into a Lua function while the script
// that produced it is running.
func luaCallable(L *lua.LState, fn *lua.LFunction) engine.Callable {
	return engine.CallableFunc(func(_ context.Context, args []interface{}) (interface{}, error) {
		top := L.GetTop()
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = toLua(L, a)
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, largs...); err != nil {
			L.SetTop(top)
			return nil, err
		}
		return popResults(L, top), nil
	})
}

func newObject(L *lua.LState, v interface{}) lua.LValue {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, objectMetatable(L))
	return ud
}

func objectMetatable(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(objectType)
	if mt.RawGetString("__index") == lua.LNil {
		mt.RawSetString("__index", L.NewFunction(objectIndex))
		mt.RawSetString("__tostring", L.NewFunction(objectString))
	}
	return mt
}

// objectIndex resolves obj.name to the method Name, then the exported field Name.
func objectIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	name := engine.ExportedName(L.CheckString(2))

	rv := reflect.ValueOf(ud.Value)
	if m := rv.MethodByName(name); m.IsValid() {
		L.Push(L.NewFunction(goFunction(m, ud)))
		return 1
	}

	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			L.Push(lua.LNil)
			return 1
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			L.Push(toLua(L, f.Interface()))
			return 1
		}
	}
	L.Push(lua.LNil)
	return 1
}

func objectString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	L.Push(lua.LString(fmt.Sprint(ud.Value)))
	return 1
}
