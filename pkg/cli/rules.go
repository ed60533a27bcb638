package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/reload"
	"github.com/platinummonkey/protoguard/pkg/rules"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

// RuleSummary describes the rules of one message type.
type RuleSummary struct {
	Message     string            `json:"message"`
	Constraints int               `json:"constraints"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (a *App) newRulesCommand() *Command {
	cmd := &Command{
		Name:        "rules",
		Description: "Compile the rules manifest and list constrained messages",
		Flags:       flag.NewFlagSet("rules", flag.ContinueOnError),
	}
	cmd.Run = func(args []string) error { return a.runRules(cmd.Flags, args) }
	return cmd
}

func (a *App) runRules(flags *flag.FlagSet, args []string) error {
	flags.SetOutput(a.Err)
	rulesFile := flags.String("rules", "", "Rules manifest (default: search -dir)")
	dir := flags.String("dir", ".", "Directory to search for a manifest")
	message := flags.String("message", "", "Show the field rules of one message")
	format := flags.String("format", "text", "Output format: text or json")

	if err := flags.Parse(args); err != nil {
		return err
	}

	path := *rulesFile
	if path == "" {
		found, err := rules.FindManifest(*dir)
		if err != nil {
			return err
		}
		path = found
	}

	logger, err := observability.NewLogger("warn", "text", a.Err)
	if err != nil {
		return err
	}
	snap, err := reload.Build(context.Background(), path, reload.Options{Logger: logger})
	if err != nil {
		return err
	}

	summaries := summarizeRules(snap, *message)
	if *message != "" && len(summaries) == 0 {
		return fmt.Errorf("no rules declared for %s", *message)
	}

	if *format == "json" {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	fmt.Fprintf(a.Out, "%s: %d validators, default mode %s\n", path, snap.Engine.Registry().Len(), snap.Engine.Mode())
	for _, s := range summaries {
		fmt.Fprintf(a.Out, "  %-50s %d constraint(s)\n", s.Message, s.Constraints)
		for _, field := range sortedFieldNames(s.Fields) {
			fmt.Fprintf(a.Out, "    %-20s %s\n", field, s.Fields[field])
		}
	}
	return nil
}

// summarizeRules lists messages the manifest constrains. Field detail is
// included only for the message named by only.
func summarizeRules(snap *reload.Snapshot, only string) []RuleSummary {
	var out []RuleSummary
	for _, name := range snap.Engine.Registry().Names() {
		spec, ok := snap.Manifest.Messages[string(name)]
		if !ok || (only != "" && string(name) != only) {
			continue
		}
		v, _ := snap.Engine.Registry().Lookup(name)
		s := RuleSummary{Message: string(name)}
		if rv, ok := v.(*validate.RuleValidator); ok {
			s.Constraints = rv.NumConstraints()
		}
		if only != "" {
			s.Fields = make(map[string]string, len(spec.Fields))
			for field, fs := range spec.Fields {
				s.Fields[field] = describeField(fs)
			}
		}
		out = append(out, s)
	}
	return out
}

func describeField(fs rules.FieldSpec) string {
	var parts []string
	if fs.Required {
		parts = append(parts, "required")
	}
	for _, b := range []struct {
		name  string
		bound *rules.Bound
	}{{"gt", fs.GT}, {"gte", fs.GTE}, {"lt", fs.LT}, {"lte", fs.LTE}} {
		if b.bound != nil {
			parts = append(parts, b.name+"="+b.bound.Raw)
		}
	}
	if fs.MinLen != nil {
		parts = append(parts, fmt.Sprintf("min_len=%d", *fs.MinLen))
	}
	if fs.MaxLen != nil {
		parts = append(parts, fmt.Sprintf("max_len=%d", *fs.MaxLen))
	}
	if fs.Pattern != "" {
		parts = append(parts, "pattern="+fs.Pattern)
	}
	if fs.Format != "" {
		parts = append(parts, "format="+fs.Format)
	}
	if fs.Delegation != "" {
		parts = append(parts, "delegation="+fs.Delegation)
	}
	return strings.Join(parts, " ")
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
