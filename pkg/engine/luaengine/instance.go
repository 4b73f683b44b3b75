package luaengine

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/engine"
)

// instance owns one LState. Every entry into the state holds mu, so a Go
// callback running inside a script must not invoke the same instance again.
//
// The state is never closed: sessions and callables handed to the host may
// outlive the evaluation that created it, so the garbage collector owns it.
type instance struct {
	mu sync.Mutex

	L    *lua.LState
	unit *unit
	vars bindings.Bindings
	// env stays empty so every global read and write goes through its
	// metamethods. held keeps the globals that live in the instance.
	env      *lua.LTable
	held     *lua.LTable
	builtins *lua.LTable
	main     *lua.LFunction
}

func newInstance(u *unit, vars bindings.Bindings) *instance {
	L := lua.NewState()
	inst := &instance{L: L, unit: u, vars: vars}

	inst.env = L.NewTable()
	inst.held = L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(inst.index))
	mt.RawSetString("__newindex", L.NewFunction(inst.newIndex))
	L.SetMetatable(inst.env, mt)

	inst.builtins = openBuiltins(L, inst)

	inst.main = L.NewFunctionFromProto(u.proto)
	inst.main.Env = inst.env
	return inst
}

func (inst *instance) Unit() engine.Unit {
	return inst.unit
}

func (inst *instance) Run(ctx context.Context) (interface{}, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.call(ctx, inst.main, nil)
}

func (inst *instance) Lookup(name string, arity int) (engine.Callable, bool) {
	sig, ok := inst.unit.funcs[name]
	if !ok || !sig.accepts(arity) {
		return nil, false
	}

	inst.mu.Lock()
	fn, ok := inst.held.RawGetString(name).(*lua.LFunction)
	inst.mu.Unlock()
	if !ok {
		return nil, false
	}

	return engine.CallableFunc(func(ctx context.Context, args []interface{}) (interface{}, error) {
		inst.mu.Lock()
		defer inst.mu.Unlock()
		return inst.call(ctx, fn, args)
	}), true
}

// Dispatch resolves name the way script code would and calls it when it is a
// function, a value with a __call metamethod, or a Go function binding.
func (inst *instance) Dispatch(ctx context.Context, name string, args []interface{}) (interface{}, bool, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	L := inst.L
	v := inst.held.RawGetString(name)
	if v == lua.LNil {
		v = inst.resolve(L, name)
	}

	switch fn := v.(type) {
	case *lua.LFunction:
		res, err := inst.call(ctx, fn, args)
		return res, true, err
	case *lua.LTable, *lua.LUserData:
		if L.GetMetaField(fn, "__call") == lua.LNil {
			return nil, false, nil
		}
		res, err := inst.call(ctx, fn, args)
		return res, true, err
	}
	return nil, false, nil
}

// call runs fn on the instance state. The caller holds mu.
func (inst *instance) call(ctx context.Context, fn lua.LValue, args []interface{}) (interface{}, error) {
	L := inst.L
	if ctx != nil && ctx.Done() != nil {
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	top := L.GetTop()
	L.Push(fn)
	for _, arg := range args {
		L.Push(toLua(L, arg))
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		L.SetTop(top)
		inst.publish()
		return nil, inst.runtimeError(ctx, err)
	}
	res := popResults(L, top)
	inst.publish()
	return res, nil
}

// index is the environment's __index: instance-held globals, bindings,
// builtins, then the standard globals.
func (inst *instance) index(L *lua.LState) int {
	k := L.Get(2)
	if v := inst.held.RawGet(k); v != lua.LNil {
		L.Push(v)
		return 1
	}
	key, ok := k.(lua.LString)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(inst.resolve(L, string(key)))
	return 1
}

func (inst *instance) resolve(L *lua.LState, name string) lua.LValue {
	if v, ok := inst.vars.Get(name); ok {
		return toLua(L, v)
	}
	if v := inst.builtins.RawGetString(name); v != lua.LNil {
		return v
	}
	return L.GetGlobal(name)
}

// newIndex is the environment's __newindex. Scalars go to the bindings,
// tables and functions to held. Either way the other side drops the name so
// the latest write is the only one visible.
func (inst *instance) newIndex(L *lua.LState) int {
	k := L.Get(2)
	v := L.Get(3)
	key, ok := k.(lua.LString)
	if !ok {
		inst.held.RawSet(k, v)
		return 0
	}
	name := string(key)

	switch v.(type) {
	case *lua.LFunction, *lua.LTable, *lua.LState, lua.LChannel:
		inst.held.RawSetString(name, v)
		inst.vars.Remove(name)
		return 0
	}
	inst.held.RawSetString(name, lua.LNil)
	if v == lua.LNil {
		inst.vars.Remove(name)
		return 0
	}
	inst.vars.Put(name, fromLua(L, v))
	return 0
}

// publish copies held non-function globals to the bindings.
func (inst *instance) publish() {
	L := inst.L
	inst.held.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		if _, isFn := v.(*lua.LFunction); isFn {
			return
		}
		inst.vars.Put(string(key), fromLua(L, v))
	})
}

var locationPattern = regexp.MustCompile(`(?s)^([^\n:]+):(\d+):\s*(.*)$`)

// runtimeError turns a gopher-lua failure into an evaluation error located
// at the line the message names.
func (inst *instance) runtimeError(ctx context.Context, err error) error {
	msg := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		msg = apiErr.Object.String()
	}

	line := 0
	if m := locationPattern.FindStringSubmatch(msg); m != nil && m[1] == inst.unit.name {
		line, _ = strconv.Atoi(m[2])
		msg = m[3]
	}

	cause := err
	if ctx != nil && ctx.Err() != nil {
		cause = ctx.Err()
	}
	return engine.NewError(engine.KindEvaluation, msg, inst.unit.name, line, 0, cause)
}
