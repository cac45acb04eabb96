package main

import (
	"os"

	"github.com/ifc-viewer/backend/internal/cli"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := cli.Execute(Version, BuildTime); err != nil {
		os.Exit(1)
	}
}
