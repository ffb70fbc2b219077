package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/output"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ACT_BINARY", "")
	t.Chdir(home)
	t.Cleanup(func() { jsonOutput = false })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseKeyValues(t *testing.T) {
	kvs, err := parseKeyValues([]string{"a=1", "b=x=y", "c="}, "=", "env")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "x=y"}, {"c", ""}}, kvs)

	_, err = parseKeyValues([]string{"novalue"}, "=", "env")
	assert.True(t, errors.Is(err, acterrors.ErrValidation))

	kvs, err = parseKeyValues([]string{"node:16"}, ":", "matrix")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"node", "16"}}, kvs)
}

func TestMaskSecrets(t *testing.T) {
	got := maskSecrets([]string{"-j", "test", "-s", "TOKEN=abc", "--env", "A=1"})
	assert.Equal(t, []string{"-j", "test", "-s", "TOKEN=***", "--env", "A=1"}, got)
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "act.log")
	transcript := "[CI/test] ⭐ Run Main greet\n" +
		"[CI/test]   | hello\n" +
		"[CI/test]   ⚙  ::set-output:: greeting=hello\n" +
		"[CI/test]   ✅  Success - Main greet\n"
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0o644))

	out, err := execute(t, "parse", path, "--json")
	require.NoError(t, err)

	var steps []output.StepResult
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, "Main greet", steps[0].Name)
	assert.Equal(t, map[string]string{"greeting": "hello"}, steps[0].Outputs)
}

func TestDryRunCommand(t *testing.T) {
	cwd := t.TempDir()
	out, err := execute(t, "dry-run", "--cwd", cwd, "--job", "test", "-s", "TOKEN=abc", "--matrix", "node:16", "--matrix", "node:18", "--json")
	require.NoError(t, err)

	var plan struct {
		Cwd  string   `json:"cwd"`
		Argv []string `json:"argv"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, cwd, plan.Cwd)
	assert.Equal(t, []string{
		"act", "-j", "test",
		"-s", "TOKEN=***",
		"--env", "GITHUB_STEP_SUMMARY=/dev/stdout",
		"--matrix", "node:16", "--matrix", "node:18",
		"-W", cwd,
	}, plan.Argv)
}

func TestPrintStepsPlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	printSteps(&buf, []output.StepResult{
		{Name: "Main greet", Status: output.StatusSuccess, Output: "hello", Outputs: map[string]string{"b": "2", "a": "1"}},
		{Name: "Main deploy", Status: output.StatusFailure, Output: "boom\nbang"},
	})
	assert.Equal(t, "PASS  Main greet\n"+
		"      output a=1\n"+
		"      output b=2\n"+
		"FAIL  Main deploy\n"+
		"      boom\n"+
		"      bang\n", buf.String())
}
