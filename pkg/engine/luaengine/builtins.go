package luaengine

import (
	"fmt"
	"io"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"zenoscript/pkg/engine"
	"zenoscript/pkg/fastjson"
)

// openBuiltins returns the names that shadow the standard globals: print
// goes to the evaluation's writer and json is the host JSON codec.
func openBuiltins(L *lua.LState, inst *instance) *lua.LTable {
	tb := L.NewTable()
	tb.RawSetString("print", L.NewFunction(inst.print))

	json := L.NewTable()
	json.RawSetString("encode", L.NewFunction(jsonEncode))
	json.RawSetString("decode", L.NewFunction(jsonDecode))
	tb.RawSetString("json", json)
	return tb
}

func (inst *instance) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(inst.writer(), strings.Join(parts, "\t"))
	return 0
}

func (inst *instance) writer() io.Writer {
	if v, ok := inst.vars.Get(engine.OutKey); ok {
		if w, ok := v.(io.Writer); ok {
			return w
		}
	}
	return os.Stdout
}

func jsonEncode(L *lua.LState) int {
	b, err := fastjson.Marshal(fromLua(L, L.CheckAny(1)))
	if err != nil {
		L.RaiseError("json.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(b))
	return 1
}

func jsonDecode(L *lua.LState) int {
	var v interface{}
	if err := fastjson.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		L.RaiseError("json.decode: %s", err.Error())
		return 0
	}
	L.Push(toLua(L, v))
	return 1
}
