package main

import (
	"fmt"
	"os"
	"strings"

	"zenoscript/internal/app"
	"zenoscript/internal/cli"
	"zenoscript/internal/config"
	"zenoscript/pkg/logger"
)

const usage = `Usage: zenoscript <command> [arguments]

Commands:
  run <script> [args...]             evaluate a script file
  transform <input> <script> [out]   run a script over an input document
  check [--json] <script>            compile a script without running it
  serve                              start the HTTP API
  migrate                            create the script store table
  version                            print version and engines

A *.lua or *.expr file as the first argument is run directly.`

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Env, cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	a := app.New(cfg, logger.Log)
	c := cli.New(a)
	code := dispatch(c, os.Args[1], os.Args[2:])
	if err := a.Close(); err != nil {
		logger.Log.Warn("failed to close script store", "error", err)
	}
	os.Exit(code)
}

func dispatch(c *cli.CLI, cmd string, args []string) int {
	switch cmd {
	case "run":
		return c.HandleRun(args)
	case "transform":
		return c.HandleTransform(args)
	case "check":
		return c.HandleCheck(args)
	case "serve":
		return c.HandleServe(args)
	case "migrate":
		return c.HandleMigrate()
	case "version", "--version", "-v":
		return c.HandleVersion()
	case "help", "--help", "-h":
		fmt.Fprintln(c.Stdout, usage)
		return 0
	}
	if strings.HasSuffix(cmd, ".lua") || strings.HasSuffix(cmd, ".expr") {
		return c.HandleRun(append([]string{cmd}, args...))
	}
	fmt.Fprintf(c.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
	return 1
}
