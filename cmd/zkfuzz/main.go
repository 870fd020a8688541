// Command zkfuzz compares guest program executions across backends.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/zkfuzz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
