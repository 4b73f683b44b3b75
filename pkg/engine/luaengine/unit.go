package luaengine

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
)

type signature struct {
	params  int
	varargs bool
}

func (s signature) accepts(arity int) bool {
	if s.varargs {
		return arity >= s.params
	}
	return arity == s.params
}

type unit struct {
	name   string
	source string
	proto  *lua.FunctionProto
	funcs  map[string]signature
}

func (u *unit) Name() string   { return u.name }
func (u *unit) Source() string { return u.source }

// Functions lists the top-level functions the unit declares.
func (u *unit) Functions() []string {
	names := make([]string, 0, len(u.funcs))
	for name := range u.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// declarations collects global functions defined at the top level of a chunk,
// either as `function f(...)` or as `f = function(...)`. Methods (a.b, a:b)
// and locals are not part of the table.
func declarations(chunk []ast.Stmt) map[string]signature {
	funcs := make(map[string]signature)
	for _, stmt := range chunk {
		switch s := stmt.(type) {
		case *ast.FuncDefStmt:
			if s.Name == nil || s.Name.Receiver != nil {
				continue
			}
			if id, ok := s.Name.Func.(*ast.IdentExpr); ok {
				funcs[id.Value] = signatureOf(s.Func)
			}
		case *ast.AssignStmt:
			for i, lhs := range s.Lhs {
				id, ok := lhs.(*ast.IdentExpr)
				if !ok || i >= len(s.Rhs) {
					continue
				}
				if fn, ok := s.Rhs[i].(*ast.FunctionExpr); ok {
					funcs[id.Value] = signatureOf(fn)
				}
			}
		}
	}
	return funcs
}

func signatureOf(fn *ast.FunctionExpr) signature {
	if fn == nil || fn.ParList == nil {
		return signature{}
	}
	return signature{params: len(fn.ParList.Names), varargs: fn.ParList.HasVargs}
}
