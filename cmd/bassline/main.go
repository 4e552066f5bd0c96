// Command bassline builds, runs and inspects propagation networks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/bassline/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
