package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"zenoscript/pkg/bindings"
)

// HandleTransform runs a script over an input document:
//
//	zenoscript transform <input> <script> [output]
//
// The input becomes the context reader and the "input" binding, the output
// file (or stdout) the context writer.
func (c *CLI) HandleTransform(args []string) int {
	switch len(args) {
	case 2, 3:
	default:
		return c.usage("zenoscript transform <input> <script> [<output>]")
	}
	if err := c.transform(args); err != nil {
		return c.reportError(args[1], err)
	}
	return 0
}

func (c *CLI) transform(args []string) (err error) {
	e, err := c.App.EngineForFile(args[1])
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(in))

	script, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(script))

	var out io.Writer = c.Stdout
	if len(args) == 3 {
		var f *os.File
		if f, err = os.Create(args[2]); err != nil {
			return err
		}
		defer multierr.AppendInvoke(&err, multierr.Close(f))
		w := bufio.NewWriter(f)
		defer multierr.AppendInvoke(&err, multierr.Invoke(w.Flush))
		out = w
	}

	input := &Input{r: bufio.NewReader(in)}
	sc := e.NewContext()
	sc.Reader = input.r
	sc.Writer = out
	sc.ErrorWriter = c.Stderr
	if err := sc.SetAttribute("input", input, bindings.EngineScope); err != nil {
		return err
	}

	ctx, cancel := c.App.WithTimeout(context.Background())
	defer cancel()
	res, err := e.EvalReader(ctx, script, sc)
	if err != nil {
		return err
	}
	if s, ok := res.(string); ok {
		_, err = io.WriteString(out, s)
	}
	return err
}

// Input is the document a transform reads. Scripts call its methods, e.g.
// input:readAll() or input:readLine() in Lua.
type Input struct {
	r *bufio.Reader
}

func (in *Input) ReadAll() (string, error) {
	b, err := io.ReadAll(in.r)
	return string(b), err
}

// ReadLine returns the next line without its terminator, or nil at the end.
func (in *Input) ReadLine() (interface{}, error) {
	line, err := in.r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return nil, nil
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Lines returns the remaining lines.
func (in *Input) Lines() ([]string, error) {
	lines := []string{}
	for {
		l, err := in.ReadLine()
		if err != nil {
			return nil, err
		}
		if l == nil {
			return lines, nil
		}
		lines = append(lines, l.(string))
	}
}
