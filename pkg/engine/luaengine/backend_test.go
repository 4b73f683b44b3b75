package luaengine_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/engine"
	"zenoscript/pkg/engine/luaengine"
)

func newEngine(t *testing.T) (*engine.Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	sc := engine.NewContext()
	sc.Writer = &out
	sc.Reader = strings.NewReader("")
	e, err := engine.New(luaengine.New(),
		engine.WithContext(sc),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return e, &out
}

const greeterSource = `
function greet(name)
  return "hello, " .. name
end

function boom()
  error("bad things")
end

add = function(a, b) return a + b end
`

func TestRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Eval(context.Background(), "return 1+1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res)

	res, err = e.Eval(context.Background(), `return 1, "a", true`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, "a", true}, res)

	res, err = e.Eval(context.Background(), "local x = 1")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestInvokeAfterEvaluate(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.InvokeFunction(ctx, "greet", "world")
	assert.ErrorIs(t, err, engine.ErrNotCompiled)

	_, err = e.Eval(ctx, greeterSource)
	require.NoError(t, err)

	res, err := e.InvokeFunction(ctx, "greet", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", res)

	res, err = e.InvokeFunction(ctx, "add", 2, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, res)

	res, err = e.InvokeFunction(ctx, "tostring", 12)
	require.NoError(t, err)
	assert.Equal(t, "12", res)

	_, err = e.InvokeFunction(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNoSuchMethod)

	_, err = e.InvokeFunction(ctx, "boom")
	require.Error(t, err)
	var se *engine.ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, engine.KindInvocation, se.Kind)
	assert.Equal(t, 7, se.Line)
	assert.Contains(t, se.Message, "bad things")
}

func TestProxyIsLazy(t *testing.T) {
	e, _ := newEngine(t)
	var api struct {
		Greet func(name string) (string, error)
		Add   func(a, b int) (int, error)
	}
	require.NoError(t, e.GetInterface(nil, &api))

	_, err := api.Greet("world")
	assert.ErrorIs(t, err, engine.ErrNotCompiled)

	_, err = e.Eval(context.Background(), greeterSource)
	require.NoError(t, err)

	s, err := api.Greet("world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", s)

	n, err := api.Add(40, 2)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestMalformedSourceIsNotCached(t *testing.T) {
	e, _ := newEngine(t)
	for i := 0; i < 2; i++ {
		_, err := e.Eval(context.Background(), "function greet(\n  return 1")
		require.Error(t, err)
		var se *engine.ScriptError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, engine.KindCompilation, se.Kind)
		assert.True(t, strings.HasPrefix(se.Source, "Script"))
		assert.True(t, strings.HasSuffix(se.Source, ".lua"))
		assert.Positive(t, se.Line)
	}
	assert.Equal(t, 0, e.Cache().Len())
	assert.Nil(t, e.Session())
}

func TestCompiledOnce(t *testing.T) {
	e, _ := newEngine(t)
	first, err := e.Compile(context.Background(), "return 1")
	require.NoError(t, err)
	second, err := e.Compile(context.Background(), "return 1")
	require.NoError(t, err)
	assert.Same(t, first.Unit(), second.Unit())
	assert.Equal(t, "Script1.lua", first.Unit().Name())
}

func TestPrintGoesToWriter(t *testing.T) {
	e, out := newEngine(t)
	_, err := e.Eval(context.Background(), `print("a", 1, nil) out:print("b")`)
	require.NoError(t, err)
	assert.Equal(t, "a\t1\tnil\nb", out.String())
}

func TestBindings(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	scope := e.Context().Bindings(bindings.EngineScope)
	scope.Put("name", "budi")

	t.Run("reads", func(t *testing.T) {
		res, err := e.Eval(ctx, `return "hi " .. name`)
		require.NoError(t, err)
		assert.Equal(t, "hi budi", res)
	})

	t.Run("writes land in the engine scope", func(t *testing.T) {
		_, err := e.Eval(ctx, `x = 41 + 1
t = {1, 2}
t[3] = 3
m = {a = "b"}
name = nil`)
		require.NoError(t, err)

		x, _ := scope.Get("x")
		assert.EqualValues(t, 42, x)
		tv, _ := scope.Get("t")
		assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, tv)
		mv, _ := scope.Get("m")
		assert.Equal(t, map[string]interface{}{"a": "b"}, mv)
		_, ok := scope.Get("name")
		assert.False(t, ok)
	})

	t.Run("functions stay in the instance", func(t *testing.T) {
		_, err := e.Eval(ctx, greeterSource)
		require.NoError(t, err)
		_, ok := scope.Get("greet")
		assert.False(t, ok)
	})

	t.Run("global scope is visible", func(t *testing.T) {
		global := bindings.NewMap()
		global.Put("tenant", "acme")
		sc := engine.NewContext()
		sc.Writer = io.Discard
		require.NoError(t, sc.SetBindings(global, bindings.GlobalScope))

		res, err := e.EvalString(ctx, "return tenant", sc)
		require.NoError(t, err)
		assert.Equal(t, "acme", res)
	})

	t.Run("context attributes", func(t *testing.T) {
		res, err := e.Eval(ctx, `local v, ok = context:attribute("x") return v`)
		require.NoError(t, err)
		assert.EqualValues(t, 42, res)
	})

	t.Run("the latest write wins over a held table", func(t *testing.T) {
		res, err := e.Eval(ctx, "x = 1\nx = {}\nx = nil\nreturn x")
		require.NoError(t, err)
		assert.Nil(t, res)
		_, ok := scope.Get("x")
		assert.False(t, ok)

		res, err = e.Eval(ctx, "y = {1}\ny = 5\nreturn y")
		require.NoError(t, err)
		assert.EqualValues(t, 5, res)
		y, _ := scope.Get("y")
		assert.EqualValues(t, 5, y)
	})

	t.Run("clearing a published table from a function", func(t *testing.T) {
		_, err := e.Eval(ctx, `t = {1, 2}
function clear() t = nil end
function get() return t end`)
		require.NoError(t, err)
		_, ok := scope.Get("t")
		require.True(t, ok)

		_, err = e.InvokeFunction(ctx, "clear")
		require.NoError(t, err)
		_, ok = scope.Get("t")
		assert.False(t, ok)

		res, err := e.InvokeFunction(ctx, "get")
		require.NoError(t, err)
		assert.Nil(t, res)
	})
}

type account struct {
	Owner   string
	balance float64
}

func (a *account) Deposit(amount float64) float64 {
	a.balance += amount
	return a.balance
}

func (a *account) Withdraw(amount float64) (float64, error) {
	if amount > a.balance {
		return a.balance, errors.New("insufficient funds")
	}
	a.balance -= amount
	return a.balance, nil
}

func TestHostValues(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	vars := e.CreateBindings()
	acct := &account{Owner: "budi"}
	vars.Put("acct", acct)
	vars.Put("add", func(a, b int) int { return a + b })
	vars.Put("each", func(items []interface{}, fn engine.Callable) error {
		for _, item := range items {
			if _, err := fn.Call(ctx, []interface{}{item}); err != nil {
				return err
			}
		}
		return nil
	})

	res, err := e.EvalWithBindings(ctx, "return add(2, 3)", vars)
	require.NoError(t, err)
	assert.EqualValues(t, 5, res)

	res, err = e.EvalWithBindings(ctx, `acct:deposit(10) return acct.owner .. ":" .. acct:deposit(5)`, vars)
	require.NoError(t, err)
	assert.Equal(t, "budi:15", res)

	_, err = e.EvalWithBindings(ctx, `acct:withdraw(100)`, vars)
	assert.ErrorIs(t, err, engine.ErrEvaluation)
	assert.Contains(t, err.Error(), "insufficient funds")

	res, err = e.EvalWithBindings(ctx, `
local sum = 0
each({1, 2, 3}, function(v) sum = sum + v end)
return sum`, vars)
	require.NoError(t, err)
	assert.EqualValues(t, 6, res)
}

func TestJSONModule(t *testing.T) {
	e, _ := newEngine(t)
	res, err := e.Eval(context.Background(), `return json.encode({a = 1, b = {"x", "y"}})`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":["x","y"]}`, res.(string))

	res, err = e.Eval(context.Background(), `local v = json.decode('{"n": 3, "list": [1, 2]}') return v.n + #v.list`)
	require.NoError(t, err)
	assert.EqualValues(t, 5, res)

	_, err = e.Eval(context.Background(), `return json.decode("{")`)
	assert.ErrorIs(t, err, engine.ErrEvaluation)
}

func TestRuntimeErrorLocation(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Eval(context.Background(), "local x = nil\nreturn x.y")
	var se *engine.ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, engine.KindEvaluation, se.Kind)
	assert.Equal(t, 2, se.Line)
	assert.Equal(t, "Script1.lua", se.Source)
}

func TestCompilationErrorAtEndOfInput(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Eval(context.Background(), "local x = 1\nif x then\n")
	var se *engine.ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, engine.KindCompilation, se.Kind)
	assert.Equal(t, 3, se.Line)
	assert.Equal(t, 0, se.Col)
}

func TestCancellation(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Eval(ctx, "while true do end")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrEvaluation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInfoAndSyntax(t *testing.T) {
	b := luaengine.New()
	info := b.Info()
	assert.Equal(t, "lua", info.Name)
	assert.Equal(t, "lua", info.Extension())
	assert.Equal(t, "5.1", info.LanguageVersion)
	assert.Contains(t, info.MimeTypes, "text/x-lua")

	assert.Equal(t, "obj:greet(a, b)", b.MethodCallSyntax("obj", "greet", "a", "b"))
	assert.Equal(t, `print("say \"hi\"\n\001")`, b.OutputStatement("say \"hi\"\n\x01"))
	assert.Equal(t, "x = 1\nprint(x)", b.Program("x = 1", "print(x)"))

	e, out := newEngine(t)
	_, err := e.Eval(context.Background(), b.Program("x = 1", b.OutputStatement("done")))
	require.NoError(t, err)
	assert.Equal(t, "done\n", out.String())
}
