package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/validate"
)

const updateUserRequest = "saltfishpr.demo.user.v1.UpdateUserRequest"

var (
	testdata     = filepath.Join("..", "..", "testdata")
	manifestPath = filepath.Join(testdata, "protoguard.yaml")
	validFile    = filepath.Join(testdata, "instances", "valid_update.json")
	invalidFile  = filepath.Join(testdata, "instances", "invalid_update.json")
)

func newTestApp() (*App, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &App{Out: out, Err: errOut, Version: "1.2.3"}, out, errOut
}

func TestRootCommand(t *testing.T) {
	app, out, _ := newTestApp()
	root := app.Root()

	require.NoError(t, root.ExecuteArgs(nil))
	assert.Contains(t, out.String(), "Usage: protoguard <command>")
	assert.Contains(t, out.String(), "check")
	assert.Contains(t, out.String(), "rules")

	err := root.ExecuteArgs([]string{"push"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: push")
}

func TestVersionCommand(t *testing.T) {
	app, out, _ := newTestApp()
	require.NoError(t, app.Root().ExecuteArgs([]string{"version"}))
	assert.True(t, strings.HasPrefix(out.String(), "protoguard 1.2.3 ("))
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		contains []string
	}{
		{
			name:     "valid instance",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, validFile},
			wantCode: ExitOK,
			contains: []string{validFile + ": OK"},
		},
		{
			name:     "invalid instance accumulates",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, validFile, invalidFile},
			wantCode: ExitViolations,
			contains: []string{invalidFile + ": 3 violation(s)", "(min_len)", "(email)"},
		},
		{
			name:     "fail fast",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, "-mode", "fail_fast", invalidFile},
			wantCode: ExitViolations,
			contains: []string{invalidFile + ": 1 violation(s)"},
		},
		{
			name:     "missing instance file",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, "missing.json"},
			wantCode: ExitError,
			contains: []string{"missing.json: ERROR"},
		},
		{
			name:     "missing message flag",
			args:     []string{"-rules", manifestPath, validFile},
			wantCode: ExitError,
		},
		{
			name:     "unknown message",
			args:     []string{"-rules", manifestPath, "-message", "demo.v1.Missing", validFile},
			wantCode: ExitError,
		},
		{
			name:     "bad mode",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, "-mode", "sometimes", validFile},
			wantCode: ExitError,
		},
		{
			name:     "bad format",
			args:     []string{"-rules", manifestPath, "-message", updateUserRequest, "-format", "xml", validFile},
			wantCode: ExitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out, _ := newTestApp()
			err := app.Root().ExecuteArgs(append([]string{"check"}, tt.args...))
			assert.Equal(t, tt.wantCode, ExitCode(err), "err: %v", err)
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestCheckCommand_JSON(t *testing.T) {
	app, out, _ := newTestApp()
	err := app.Root().ExecuteArgs([]string{
		"check", "-rules", manifestPath, "-message", updateUserRequest,
		"-format", "json", "-concurrency", "1", invalidFile, validFile,
	})
	assert.ErrorIs(t, err, ErrViolations)

	var report CheckReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, updateUserRequest, report.Message)
	assert.Equal(t, "accumulate_all", report.Mode)
	require.Len(t, report.Results, 2)

	assert.Equal(t, invalidFile, report.Results[0].File)
	assert.False(t, report.Results[0].Valid)
	require.Len(t, report.Results[0].Violations, 3)
	assert.Equal(t, validate.KindMinLen, report.Results[0].Violations[0].Constraint)

	assert.True(t, report.Results[1].Valid)
	assert.NotNil(t, report.Results[1].Violations)
}

func TestCheckCommand_Audit(t *testing.T) {
	dir := t.TempDir()
	app, _, _ := newTestApp()
	err := app.Root().ExecuteArgs([]string{
		"check", "-rules", manifestPath, "-message", updateUserRequest,
		"-audit-dir", dir, validFile, invalidFile,
	})
	assert.ErrorIs(t, err, ErrViolations)

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, string(data), `"source":"cli"`)
}

func TestRulesCommand(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		app, out, _ := newTestApp()
		require.NoError(t, app.Root().ExecuteArgs([]string{"rules", "-dir", testdata}))
		assert.Contains(t, out.String(), "default mode accumulate_all")
		assert.Contains(t, out.String(), updateUserRequest+".User")
		assert.NotContains(t, out.String(), "google.protobuf.FieldMask")
	})

	t.Run("one message", func(t *testing.T) {
		app, out, _ := newTestApp()
		require.NoError(t, app.Root().ExecuteArgs([]string{
			"rules", "-rules", manifestPath, "-format", "json", "-message", updateUserRequest + ".User",
		}))

		var summaries []RuleSummary
		require.NoError(t, json.Unmarshal(out.Bytes(), &summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, "min_len=3 max_len=32", summaries[0].Fields["username"])
		assert.Equal(t, "format=email", summaries[0].Fields["email"])
	})

	t.Run("no manifest", func(t *testing.T) {
		app, _, _ := newTestApp()
		assert.Error(t, app.Root().ExecuteArgs([]string{"rules", "-dir", t.TempDir()}))
	})

	t.Run("unconstrained message", func(t *testing.T) {
		app, _, _ := newTestApp()
		assert.Error(t, app.Root().ExecuteArgs([]string{"rules", "-rules", manifestPath, "-message", "google.protobuf.FieldMask"}))
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitViolations, ExitCode(ErrViolations))
	assert.Equal(t, ExitError, ExitCode(ErrInvalidInput))
}
