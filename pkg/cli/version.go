package cli

import (
	"flag"
	"fmt"
	"runtime"
)

func (a *App) newVersionCommand() *Command {
	return &Command{
		Name:        "version",
		Description: "Print the version",
		Flags:       flag.NewFlagSet("version", flag.ContinueOnError),
		Run: func(args []string) error {
			version := a.Version
			if version == "" {
				version = "dev"
			}
			fmt.Fprintf(a.Out, "protoguard %s (%s)\n", version, runtime.Version())
			return nil
		},
	}
}
