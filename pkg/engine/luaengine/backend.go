// Package luaengine is the Lua 5.1 backend of the script engine, built on
// gopher-lua.
//
// Script globals read and write through the evaluation's bindings: scalar
// assignments land in the bindings immediately, tables and functions stay in
// the instance and tables are published to the bindings when a run or call
// returns. Top-level function declarations form the instance's callable table.
package luaengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/engine"
)

const Name = "lua"

type Backend struct{}

var _ engine.Factory = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Info() engine.Info {
	return engine.Info{
		Name:            Name,
		EngineName:      lua.PackageName,
		EngineVersion:   lua.PackageVersion,
		LanguageName:    "lua",
		LanguageVersion: strings.TrimPrefix(lua.LuaVersion, "Lua "),
		Extensions:      []string{"lua"},
		MimeTypes:       []string{"text/x-lua", "application/x-lua"},
		Names:           []string{"lua", "gopherlua", "gopher-lua"},
	}
}

func (b *Backend) Compile(_ context.Context, source, name string) (engine.Unit, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		var pe *parse.Error
		if errors.As(err, &pe) {
			line, col := pe.Pos.Line, pe.Pos.Column
			if line == parse.EOF {
				// reported at end of input
				line, col = strings.Count(source, "\n")+1, 0
			}
			return nil, engine.NewError(engine.KindCompilation, pe.Message, name, line, col, err)
		}
		return nil, engine.NewError(engine.KindCompilation, err.Error(), name, 0, 0, err)
	}

	proto, err := lua.Compile(chunk, name)
	if err != nil {
		var ce *lua.CompileError
		if errors.As(err, &ce) {
			return nil, engine.NewError(engine.KindCompilation, ce.Message, name, ce.Line, 0, err)
		}
		return nil, engine.NewError(engine.KindCompilation, err.Error(), name, 0, 0, err)
	}

	return &unit{
		name:   name,
		source: source,
		proto:  proto,
		funcs:  declarations(chunk),
	}, nil
}

func (b *Backend) NewInstance(_ context.Context, u engine.Unit, vars bindings.Bindings) (engine.Instance, error) {
	lu, ok := u.(*unit)
	if !ok {
		return nil, fmt.Errorf("luaengine: unit %s was not compiled by this backend", u.Name())
	}
	if vars == nil {
		vars = bindings.New()
	}
	return newInstance(lu, vars), nil
}

// MethodCallSyntax renders obj:method(args...).
func (b *Backend) MethodCallSyntax(obj, method string, args ...string) string {
	return fmt.Sprintf("%s:%s(%s)", obj, method, strings.Join(args, ", "))
}

func (b *Backend) OutputStatement(toDisplay string) string {
	return "print(" + quote(toDisplay) + ")"
}

func (b *Backend) Program(statements ...string) string {
	return strings.Join(statements, "\n")
}

// quote renders s as a Lua 5.1 string literal. Lua 5.1 has no \x or \u
// escapes, so control bytes use decimal escapes.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, `\%03d`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
