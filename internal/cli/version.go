package cli

import (
	"fmt"
	"runtime"
	"strings"
)

func (c *CLI) HandleVersion() int {
	fmt.Fprintf(c.Stdout, "zenoscript %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	for _, info := range c.App.Manager.Infos() {
		fmt.Fprintf(c.Stdout, "  %-6s %s %s, %s %s (.%s)\n",
			info.Name,
			info.EngineName, info.EngineVersion,
			info.LanguageName, info.LanguageVersion,
			strings.Join(info.Extensions, ", ."),
		)
	}
	return 0
}
