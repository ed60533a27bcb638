package main

import (
	"fmt"
	"os"

	"github.com/platinummonkey/protoguard/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)

	err := rootCmd.Execute()
	code := cli.ExitCode(err)
	// Violations are already on stdout.
	if err != nil && code != cli.ExitViolations {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
