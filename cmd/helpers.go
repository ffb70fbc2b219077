package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stevehiehn/acttest/internal/act"
	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/mockapi"
	"github.com/stevehiehn/acttest/internal/output"
	"github.com/stevehiehn/acttest/internal/workflow"
)

// parseKeyValues splits ["key<sep>value", ...] in order. Entries without the
// separator are rejected.
func parseKeyValues(raw []string, sep, flag string) ([][2]string, error) {
	out := make([][2]string, 0, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, sep)
		if !ok || k == "" {
			return nil, acterrors.NewValidationError(
				fmt.Sprintf("invalid --%s value %q", flag, kv),
				fmt.Sprintf("use --%s key%svalue", flag, sep),
			)
		}
		out = append(out, [2]string{k, v})
	}
	return out, nil
}

// actFlags are the act arguments shared by run and dry-run.
type actFlags struct {
	job           string
	event         string
	workflow      string
	cwd           string
	secrets       []string
	envs          []string
	vars          []string
	inputs        []string
	matrix        []string
	platforms     []string
	eventFile     string
	mockSteps     string
	mockAPI       string
	bind          bool
	logFile       string
	artifactPath  string
	artifactPort  string
	containerArch string
	daemonSocket  string
	containerOpts string
	githubToken   string
	stepSummary   string
}

func (f *actFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.job, "job", "j", "", "Job to run")
	fl.StringVarP(&f.event, "event", "e", "", "Event to trigger (default push when no job is given)")
	fl.StringVarP(&f.workflow, "workflow", "W", "", "Workflow file or directory")
	fl.StringVar(&f.cwd, "cwd", "", "Working directory (default current directory)")
	fl.StringArrayVarP(&f.secrets, "secret", "s", nil, "Secret (key=value)")
	fl.StringArrayVar(&f.envs, "env", nil, "Environment variable (key=value)")
	fl.StringArrayVar(&f.vars, "var", nil, "Variable (key=value)")
	fl.StringArrayVar(&f.inputs, "input", nil, "Workflow input (key=value)")
	fl.StringArrayVar(&f.matrix, "matrix", nil, "Matrix value (key:value), repeatable per key")
	fl.StringArrayVar(&f.platforms, "platform", nil, "Platform image (platform=image)")
	fl.StringVar(&f.eventFile, "event-file", "", "JSON event payload")
	fl.StringVar(&f.mockSteps, "mock-steps", "", "YAML file of step mocks keyed by job")
	fl.StringVar(&f.mockAPI, "mock-api", "", "YAML file of HTTP mocks")
	fl.BoolVar(&f.bind, "bind", false, "Bind the working directory instead of copying it")
	fl.StringVar(&f.logFile, "log-file", "", "Write the raw act output to this file")
	fl.StringVar(&f.artifactPath, "artifact-server-path", "", "Enable act's artifact server at this path")
	fl.StringVar(&f.artifactPort, "artifact-server-port", "", "Artifact server port")
	fl.StringVar(&f.containerArch, "container-architecture", "", "Container architecture")
	fl.StringVar(&f.daemonSocket, "container-daemon-socket", "", "Container daemon socket")
	fl.StringVar(&f.containerOpts, "container-options", "", "Custom container options")
	fl.StringVar(&f.githubToken, "github-token", "", "GITHUB_TOKEN secret")
	fl.StringVar(&f.stepSummary, "step-summary", "", "GITHUB_STEP_SUMMARY file (default /dev/stdout)")
}

// command returns the leading act arguments. With neither job nor event act
// runs push.
func (f *actFlags) command() []string {
	if f.job == "" && f.event == "" {
		return act.Command("push", "")
	}
	return act.Command(f.event, f.job)
}

// newAct builds an Act from the loaded config.
func newAct(cwd, workflowFile string) (*act.Act, error) {
	opts := []act.Option{
		act.WithLogger(log),
		act.WithBinary(cfg.ActBinary),
		act.WithImageSize(cfg.DefaultImageSize),
		act.WithProxyListenHost(cfg.Proxy.ListenHost),
		act.WithProxyAdvertiseIP(cfg.Proxy.AdvertiseIP),
	}
	if cfg.Artifacts.Enabled {
		opts = append(opts, act.WithArtifacts(cfg.Artifacts.Dir))
	}
	return act.New(cwd, workflowFile, opts...)
}

// build configures an Act and the run options from the flags.
func (f *actFlags) build() (*act.Act, *act.RunOpts, error) {
	a, err := newAct(f.cwd, "")
	if err != nil {
		return nil, nil, err
	}
	set := func(raw []string, sep, flag string, apply func(k, v string)) error {
		kvs, err := parseKeyValues(raw, sep, flag)
		if err != nil {
			return err
		}
		for _, kv := range kvs {
			apply(kv[0], kv[1])
		}
		return nil
	}
	if err := set(f.secrets, "=", "secret", func(k, v string) { a.SetSecret(k, v) }); err != nil {
		return nil, nil, err
	}
	if err := set(f.envs, "=", "env", func(k, v string) { a.SetEnv(k, v) }); err != nil {
		return nil, nil, err
	}
	if err := set(f.vars, "=", "var", func(k, v string) { a.SetVar(k, v) }); err != nil {
		return nil, nil, err
	}
	if err := set(f.inputs, "=", "input", func(k, v string) { a.SetInput(k, v) }); err != nil {
		return nil, nil, err
	}
	if err := set(f.platforms, "=", "platform", func(k, v string) { a.SetPlatforms(k, v) }); err != nil {
		return nil, nil, err
	}
	matrix := map[string][]string{}
	if err := set(f.matrix, ":", "matrix", func(k, v string) {
		matrix[k] = append(matrix[k], v)
		a.SetMatrix(k, matrix[k])
	}); err != nil {
		return nil, nil, err
	}
	if f.githubToken != "" {
		a.SetGithubToken(f.githubToken)
	}
	if f.stepSummary != "" {
		a.SetGithubStepSummary(f.stepSummary)
	}
	a.SetContainerArchitecture(f.containerArch).
		SetContainerDaemonSocket(f.daemonSocket).
		SetCustomContainerOpts(f.containerOpts)

	if f.eventFile != "" {
		data, err := os.ReadFile(f.eventFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading event file: %w", err)
		}
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, nil, acterrors.NewValidationError(
				fmt.Sprintf("event file %s is not a JSON object: %v", f.eventFile, err), "")
		}
		a.SetEvent(event)
	}

	opts := &act.RunOpts{
		Cwd:          f.cwd,
		WorkflowFile: f.workflow,
		Bind:         f.bind,
		Verbose:      cfg.Verbose,
		LogFile:      f.logFile,
	}
	if f.artifactPath != "" {
		opts.ArtifactServer = &act.ArtifactServer{Path: f.artifactPath, Port: f.artifactPort}
	}
	if f.mockSteps != "" {
		ms, err := workflow.LoadMockSteps(f.mockSteps)
		if err != nil {
			return nil, nil, err
		}
		opts.MockSteps = ms
	}
	if f.mockAPI != "" {
		mocks, err := mockapi.LoadFile(f.mockAPI)
		if err != nil {
			return nil, nil, err
		}
		opts.MockAPI = mockapi.Responders(mocks)
	}
	return a, opts, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSteps renders step results for humans. Colors are only emitted when w
// is a terminal.
func printSteps(w io.Writer, steps []output.StepResult) {
	r := lipgloss.NewRenderer(w)
	pass := r.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	fail := r.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	detail := r.NewStyle().Faint(true)

	for _, s := range steps {
		mark := pass.Render("PASS")
		if s.Status != output.StatusSuccess {
			mark = fail.Render("FAIL")
		}
		fmt.Fprintf(w, "%s  %s\n", mark, s.Name)
		if s.Status != output.StatusSuccess && s.Output != "" {
			for _, line := range strings.Split(s.Output, "\n") {
				fmt.Fprintf(w, "      %s\n", detail.Render(line))
			}
		}
		for _, k := range slices.Sorted(maps.Keys(s.Outputs)) {
			fmt.Fprintf(w, "      output %s=%s\n", k, s.Outputs[k])
		}
	}
}
