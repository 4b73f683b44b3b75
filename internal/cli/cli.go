// Package cli implements the zenoscript subcommands. Every handler returns the
// process exit code.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"zenoscript/internal/app"
	"zenoscript/pkg/coerce"
	"zenoscript/pkg/engine"
	"zenoscript/pkg/fastjson"
)

// Version is set at build time with -ldflags "-X zenoscript/internal/cli.Version=...".
var Version = "dev"

type CLI struct {
	App    *app.App
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a CLI bound to the process standard streams.
func New(a *app.App) *CLI {
	return &CLI{App: a, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (c *CLI) usage(format string, a ...interface{}) int {
	fmt.Fprintf(c.Stderr, "Usage: "+format+"\n", a...)
	return 1
}

// printResult writes a script's return value. Tables and maps are printed as JSON.
func (c *CLI) printResult(res interface{}) {
	switch v := res.(type) {
	case nil:
		return
	case string:
		fmt.Fprintln(c.Stdout, v)
		return
	case []interface{}, map[string]interface{}:
		if data, err := fastjson.Marshal(v); err == nil {
			fmt.Fprintln(c.Stdout, string(data))
			return
		}
	}
	fmt.Fprintln(c.Stdout, coerce.ToString(res))
}

// reportError prints a script failure with the file path in place of the
// synthetic unit name.
func (c *CLI) reportError(path string, err error) int {
	var se *engine.ScriptError
	if errors.As(err, &se) {
		loc := path
		if se.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, se.Line)
			if se.Col > 0 {
				loc = fmt.Sprintf("%s:%d", loc, se.Col)
			}
		}
		fmt.Fprintf(c.Stderr, "❌ %s error at %s: %s\n", se.Kind, loc, se.Message)
		return 1
	}
	fmt.Fprintf(c.Stderr, "❌ %v\n", err)
	return 1
}
