package cli

import (
	"context"
	"fmt"
)

// HandleMigrate creates the script store table in the configured database.
func (c *CLI) HandleMigrate() int {
	if c.App.Config.DB.Driver == "" {
		fmt.Fprintln(c.Stderr, "❌ DB_DRIVER is not set, nothing to migrate")
		return 1
	}
	if err := c.App.OpenStore(context.Background()); err != nil {
		fmt.Fprintf(c.Stderr, "❌ Migration failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.Stdout, "✅ Script store ready (%s)\n", c.App.Store.Dialect().Name())
	return 0
}
