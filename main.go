package main

import (
	"fmt"
	"os"

	"github.com/ekaya-inc/querybridge/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cli.NewRootCommand(Version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
