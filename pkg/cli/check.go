package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/reload"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// ErrInvalidInput is returned when an instance file cannot be read or decoded.
var ErrInvalidInput = errors.New("invalid input")

// CheckResult is the outcome for one instance file.
type CheckResult struct {
	File       string              `json:"file"`
	Valid      bool                `json:"valid"`
	Violations validate.Violations `json:"violations"`
	Error      string              `json:"error,omitempty"`
}

// CheckReport is the -format json output of check.
type CheckReport struct {
	Message string        `json:"message"`
	Mode    string        `json:"mode"`
	Results []CheckResult `json:"results"`
}

func (a *App) newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Validate JSON instances of a message against the rules",
		Flags:       flag.NewFlagSet("check", flag.ContinueOnError),
	}
	cmd.Run = func(args []string) error { return a.runCheck(cmd.Flags, args) }
	return cmd
}

func (a *App) runCheck(flags *flag.FlagSet, args []string) error {
	flags.SetOutput(a.Err)
	rulesFile := flags.String("rules", "protoguard.yaml", "Rules manifest")
	message := flags.String("message", "", "Fully qualified message type of the instances (required)")
	modeFlag := flags.String("mode", "", "fail_fast or accumulate_all (default: manifest default)")
	format := flags.String("format", "text", "Output format: text or json")
	concurrency := flags.Int("concurrency", runtime.GOMAXPROCS(0), "Instances validated in parallel")
	auditDir := flags.String("audit-dir", "", "Append audit events to this directory")
	logLevel := flags.String("log-level", "warn", "Log level")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("-message is required")
	}
	files := flags.Args()
	if len(files) == 0 {
		return fmt.Errorf("at least one instance file is required")
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q (must be text or json)", *format)
	}

	logger, err := observability.NewLogger(*logLevel, "text", a.Err)
	if err != nil {
		return err
	}

	opts := reload.Options{Logger: logger}
	if *modeFlag != "" {
		mode, err := validate.ParseMode(*modeFlag)
		if err != nil {
			return err
		}
		opts.Mode = &mode
	}

	ctx := context.Background()
	snap, err := reload.Build(ctx, *rulesFile, opts)
	if err != nil {
		return err
	}
	name := protoreflect.FullName(*message)
	if _, err := snap.Schema.FindMessage(name); err != nil {
		return err
	}

	recorder, err := openCLIAudit(*auditDir, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	mode := snap.Engine.Mode()
	results, err := checkFiles(ctx, snap, name, mode, files, *concurrency, recorder)
	if err != nil {
		return err
	}

	report := CheckReport{Message: *message, Mode: mode.String(), Results: results}
	if *format == "json" {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		writeText(a.Out, report)
	}

	return summarize(results)
}

func openCLIAudit(dir string, logger logrus.FieldLogger) (*audit.Recorder, error) {
	if dir == "" {
		return audit.NewRecorder(audit.NoOp(), logger, false), nil
	}
	sink, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: dir})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return audit.NewRecorder(sink, logger, true), nil
}

// checkFiles validates every file, at most limit at a time. Results keep
// the order of files. A configuration error aborts the run.
func checkFiles(ctx context.Context, snap *reload.Snapshot, name protoreflect.FullName, mode validate.Mode, files []string, limit int, recorder *audit.Recorder) ([]CheckResult, error) {
	results := make([]CheckResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			res := CheckResult{File: file, Violations: validate.Violations{}}
			defer func() { results[i] = res }()

			data, err := os.ReadFile(file)
			if err != nil {
				res.Error = err.Error()
				return nil
			}
			msg, err := snap.Schema.UnmarshalJSON(name, data)
			if err != nil {
				res.Error = err.Error()
				return nil
			}

			violations, err := snap.Validator.Validate(ctx, msg, mode)
			recorder.Record(ctx, audit.NewEvent(ctx, audit.SourceCLI, file, string(name), mode, violations, err))
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if violations != nil {
				res.Violations = violations
			}
			res.Valid = len(violations) == 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeText(w io.Writer, report CheckReport) {
	for _, res := range report.Results {
		switch {
		case res.Error != "":
			fmt.Fprintf(w, "%s: ERROR %s\n", res.File, res.Error)
		case res.Valid:
			fmt.Fprintf(w, "%s: OK\n", res.File)
		default:
			fmt.Fprintf(w, "%s: %d violation(s)\n", res.File, len(res.Violations))
			for _, v := range res.Violations {
				fmt.Fprintf(w, "  %s: %s (%s)\n", v.Field, v.Message, v.Constraint)
			}
		}
	}
}

func summarize(results []CheckResult) error {
	var failed, broken int
	for _, res := range results {
		switch {
		case res.Error != "":
			broken++
		case !res.Valid:
			failed++
		}
	}
	switch {
	case broken > 0:
		return fmt.Errorf("%w: %d of %d instance(s) could not be decoded", ErrInvalidInput, broken, len(results))
	case failed > 0:
		return fmt.Errorf("%w: %d of %d instance(s) invalid", ErrViolations, failed, len(results))
	}
	return nil
}
