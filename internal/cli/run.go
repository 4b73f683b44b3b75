package cli

import (
	"context"
	"os"

	"go.uber.org/multierr"

	"zenoscript/pkg/bindings"
)

// HandleRun evaluates a script file. Extra arguments are bound as "args".
func (c *CLI) HandleRun(args []string) int {
	if len(args) < 1 {
		return c.usage("zenoscript run <script> [args...]")
	}
	path := args[0]

	code, err := c.run(path, args[1:])
	if err != nil {
		return c.reportError(path, err)
	}
	return code
}

func (c *CLI) run(path string, rest []string) (code int, err error) {
	e, err := c.App.EngineForFile(path)
	if err != nil {
		return 1, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 1, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	scriptArgs := make([]interface{}, len(rest))
	for i, a := range rest {
		scriptArgs[i] = a
	}

	sc := e.NewContext()
	sc.Reader = c.Stdin
	sc.Writer = c.Stdout
	sc.ErrorWriter = c.Stderr
	if err := sc.SetAttribute("args", scriptArgs, bindings.EngineScope); err != nil {
		return 1, err
	}

	ctx, cancel := c.App.WithTimeout(context.Background())
	defer cancel()
	res, err := e.EvalReader(ctx, f, sc)
	if err != nil {
		return 1, err
	}
	c.printResult(res)
	return 0, nil
}
