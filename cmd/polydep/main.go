package main

import (
	"fmt"
	"os"

	"github.com/roach88/polydep/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Subcommands silence cobra; the exit reason goes to stderr.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
