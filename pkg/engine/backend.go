package engine

import (
	"context"

	"zenoscript/pkg/bindings"
)

// Backend is the boundary between the adapter and an embedded interpreter.
// The adapter owns caching, scoping and invocation bookkeeping; a backend only
// parses, instantiates and runs.
//
// THREAD-SAFETY: Compile and NewInstance may be called concurrently.
type Backend interface {
	Info() Info

	// Compile turns source into a reusable unit. name is a synthetic,
	// diagnostics-only identifier. Syntax errors should be returned as
	// *ScriptError with Kind KindCompilation and a location.
	Compile(ctx context.Context, source, name string) (Unit, error)

	// NewInstance creates a fresh runtime instance of unit whose script-visible
	// variables read and write through vars.
	NewInstance(ctx context.Context, unit Unit, vars bindings.Bindings) (Instance, error)
}

// Unit is an opaque compiled script.
type Unit interface {
	Name() string
	Source() string
}

// Instance is one runtime incarnation of a Unit.
type Instance interface {
	Unit() Unit

	// Run executes the unit's top level and returns its result.
	Run(ctx context.Context) (interface{}, error)

	// Lookup resolves a callable declared by the unit by name and arity.
	// Argument types play no part in the match.
	Lookup(name string, arity int) (Callable, bool)

	// Dispatch calls name dynamically, whatever its declared arity. found is
	// false when name does not resolve to anything callable.
	Dispatch(ctx context.Context, name string, args []interface{}) (result interface{}, found bool, err error)
}

// Callable is a resolved entry point.
type Callable interface {
	Call(ctx context.Context, args []interface{}) (interface{}, error)
}

// CallableFunc adapts a plain function to Callable.
type CallableFunc func(ctx context.Context, args []interface{}) (interface{}, error)

func (f CallableFunc) Call(ctx context.Context, args []interface{}) (interface{}, error) {
	return f(ctx, args)
}

// Info describes a backend, mirroring what hosts use to pick an engine.
type Info struct {
	Name            string   `json:"name"`
	EngineName      string   `json:"engine_name"`
	EngineVersion   string   `json:"engine_version"`
	LanguageName    string   `json:"language_name"`
	LanguageVersion string   `json:"language_version"`
	Extensions      []string `json:"extensions"`
	MimeTypes       []string `json:"mime_types"`
	Names           []string `json:"names"`
}

// Extension returns the primary file extension, used for synthetic unit names.
func (i Info) Extension() string {
	if len(i.Extensions) == 0 {
		return "script"
	}
	return i.Extensions[0]
}

// Syntax is implemented by backends that can generate source snippets.
type Syntax interface {
	MethodCallSyntax(obj, method string, args ...string) string
	OutputStatement(toDisplay string) string
	Program(statements ...string) string
}
