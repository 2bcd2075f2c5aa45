package main

import (
	"fmt"
	"os"

	"github.com/sprigdev/sprig/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sprig: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
