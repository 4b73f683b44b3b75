package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"zenoscript/pkg/engine"
	"zenoscript/pkg/fastjson"
)

type checkReport struct {
	Success   bool                  `json:"success"`
	File      string                `json:"file"`
	Engine    string                `json:"engine,omitempty"`
	Functions []string              `json:"functions,omitempty"`
	Errors    []*engine.ScriptError `json:"errors,omitempty"`
}

// HandleCheck compiles a script without running it.
func (c *CLI) HandleCheck(args []string) int {
	isJSON := false
	path := ""
	for _, arg := range args {
		if arg == "--json" {
			isJSON = true
		} else {
			path = arg
		}
	}
	if path == "" {
		return c.usage("zenoscript check [--json] <script>")
	}

	report := c.check(path)
	if isJSON {
		out, _ := fastjson.MarshalIndent(report, "", "  ")
		fmt.Fprintln(c.Stdout, string(out))
	} else if report.Success {
		msg := fmt.Sprintf("✅ %s compiles (%s)", path, report.Engine)
		if len(report.Functions) > 0 {
			msg += ", functions: " + strings.Join(report.Functions, ", ")
		}
		fmt.Fprintln(c.Stdout, msg)
	} else {
		for _, se := range report.Errors {
			c.reportError(path, se)
		}
	}
	if !report.Success {
		return 1
	}
	return 0
}

func (c *CLI) check(path string) checkReport {
	report := checkReport{File: path}
	fail := func(err error) checkReport {
		var se *engine.ScriptError
		if !errors.As(err, &se) {
			se = engine.NewError(engine.KindIO, err.Error(), "", 0, 0, err)
		}
		clone := *se
		clone.Source = path
		report.Errors = append(report.Errors, &clone)
		return report
	}

	e, err := c.App.EngineForFile(path)
	if err != nil {
		return fail(err)
	}
	report.Engine = e.Info().Name

	src, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	compiled, err := e.Compile(context.Background(), string(src))
	if err != nil {
		return fail(err)
	}
	if fl, ok := compiled.Unit().(interface{ Functions() []string }); ok {
		report.Functions = fl.Functions()
	}
	report.Success = true
	return report
}
