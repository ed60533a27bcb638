package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0
	ExitViolations = 1
	ExitError      = 2
)

// ErrViolations is returned when at least one instance failed validation.
var ErrViolations = errors.New("validation failed")

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// App holds the output streams shared by all commands.
type App struct {
	Out     io.Writer
	Err     io.Writer
	Version string
}

// NewRootCommand creates the root command writing to stdout and stderr.
func NewRootCommand(version string) *Command {
	return (&App{Out: os.Stdout, Err: os.Stderr, Version: version}).Root()
}

// Root builds the command tree.
func (a *App) Root() *Command {
	root := &Command{
		Name:        "protoguard",
		Description: "protoguard - validate protobuf messages against declarative rules",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("protoguard", flag.ContinueOnError),
	}
	root.Flags.SetOutput(a.Out)

	root.Subcommands["check"] = a.newCheckCommand()
	root.Subcommands["rules"] = a.newRulesCommand()
	root.Subcommands["version"] = a.newVersionCommand()

	return root
}

// Execute runs the subcommand named by os.Args.
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the subcommand named by args[0].
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrViolations):
		return ExitViolations
	default:
		return ExitError
	}
}
