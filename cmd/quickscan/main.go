package main

import (
	"os"

	"github.com/quick-analysis/backend/internal/cli"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := cli.NewRootCommand(Version, BuildTime).Execute(); err != nil {
		os.Exit(1)
	}
}
