package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"zenoscript/internal/server"
)

// HandleServe opens the script store and serves the HTTP API until SIGINT or
// SIGTERM.
func (c *CLI) HandleServe(args []string) int {
	if len(args) > 0 {
		return c.usage("zenoscript serve")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.App.OpenStore(ctx); err != nil {
		fmt.Fprintf(c.Stderr, "❌ Fatal: script store unavailable: %v\n", err)
		return 1
	}
	if err := server.New(c.App).ListenAndServe(ctx); err != nil {
		fmt.Fprintf(c.Stderr, "❌ %v\n", err)
		return 1
	}
	return 0
}
