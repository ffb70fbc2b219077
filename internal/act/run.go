package act

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevehiehn/acttest/internal/argmap"
	acterrors "github.com/stevehiehn/acttest/internal/errors"
	"github.com/stevehiehn/acttest/internal/mockapi"
	"github.com/stevehiehn/acttest/internal/output"
	"github.com/stevehiehn/acttest/internal/proxy"
	"github.com/stevehiehn/acttest/internal/runner"
	"github.com/stevehiehn/acttest/internal/workflow"
)

var dockerUnavailable = regexp.MustCompile(`Cannot connect to the Docker daemon at .+`)

const proxyStopTimeout = 5 * time.Second

// ArtifactServer enables act's artifact server.
type ArtifactServer struct {
	Path string
	Port string
}

// RunOpts are the per-run settings.
type RunOpts struct {
	// Cwd overrides the instance working directory.
	Cwd string
	// WorkflowFile overrides the instance workflow file.
	WorkflowFile   string
	Bind           bool
	Verbose        bool
	ArtifactServer *ArtifactServer
	// MockAPI starts a forward proxy that answers matching requests.
	MockAPI []mockapi.Responder
	// MockSteps rewrites the workflow files before the run.
	MockSteps workflow.MockSteps
	// LogFile receives a raw copy of the transcript.
	LogFile string
	// Stream receives the transcript as it is produced.
	Stream io.Writer
}

// RunJob runs a single job.
func (a *Act) RunJob(ctx context.Context, jobID string, opts *RunOpts) (*Result, error) {
	return a.run(ctx, []string{"-j", jobID}, opts, func(w Workflow) bool {
		return w.JobID == jobID
	})
}

// RunEvent runs every job triggered by event.
func (a *Act) RunEvent(ctx context.Context, event string, opts *RunOpts) (*Result, error) {
	return a.run(ctx, []string{event}, opts, func(w Workflow) bool {
		return w.hasEvent(event)
	})
}

// RunEventAndJob runs jobID for event.
func (a *Act) RunEventAndJob(ctx context.Context, event, jobID string, opts *RunOpts) (*Result, error) {
	return a.run(ctx, []string{event, "-j", jobID}, opts, func(w Workflow) bool {
		return w.hasEvent(event) && w.JobID == jobID
	})
}

func (a *Act) run(ctx context.Context, cmd []string, opts *RunOpts, filter func(Workflow) bool) (result *Result, err error) {
	if opts == nil {
		opts = &RunOpts{}
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = a.cwd
	}
	rc, err := newRunContext(cwd, a.artifactRoot, a.log)
	if err != nil {
		return nil, err
	}
	result = &Result{RunID: rc.RunID, Steps: []output.StepResult{}}
	if rc.store != nil {
		result.Artifacts = rc.store.BaseDir
	}

	mocked, err := a.mockSteps(ctx, rc, opts, filter)
	if err != nil {
		return nil, err
	}
	result.Mocked = mocked

	env := a.env
	if len(opts.MockAPI) > 0 {
		px := proxy.New(opts.MockAPI, proxy.Config{
			Logger:      rc.log,
			Verbose:     opts.Verbose,
			ListenHost:  a.proxyHost,
			AdvertiseIP: a.proxyIP,
		})
		addr, err := px.Start(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), proxyStopTimeout)
			defer cancel()
			if stopErr := px.Stop(stopCtx); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
		}()
		rc.log.Info("mock proxy started", zap.String("addr", addr))
		result.ProxyAddr = addr
		env = proxyEnv(a.env, "http://"+addr)
	}

	event, inputs := a.inputArgs()
	ev, eventArgs, err := writeEvent(event)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := ev.remove(); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("removing event: %w", rmErr))
		}
	}()

	workflowFile := opts.WorkflowFile
	if workflowFile == "" {
		workflowFile = a.workflowFile
	}
	args := a.args(cmd, env, inputs, eventArgs, opts, workflowFile)

	rc.log.Info("running act", zap.Strings("cmd", cmd), zap.String("workflow", workflowFile), zap.String("cwd", cwd))
	res, err := a.exec(ctx, cwd, opts.LogFile, args, opts.Stream)
	if res != nil && rc.store != nil {
		if werr := rc.store.WriteTranscript(res.Output); werr != nil {
			rc.log.Warn("failed to store transcript", zap.Error(werr))
		}
	}
	if err != nil {
		return nil, err
	}

	result.ExitCode = res.ExitCode
	result.Steps = output.Parse(res.Output)
	result.Success = res.ExitCode == 0 && output.Succeeded(result.Steps)
	rc.log.Info("act finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Int("steps", len(result.Steps)),
		zap.Bool("success", result.Success),
	)
	if rc.store != nil {
		if werr := rc.store.WriteResult(result); werr != nil {
			rc.log.Warn("failed to store result", zap.Error(werr))
		}
	}
	return result, nil
}

// Command returns the leading act arguments selecting event and jobID.
// Either may be empty.
func Command(event, jobID string) []string {
	var cmd []string
	if event != "" {
		cmd = append(cmd, event)
	}
	if jobID != "" {
		cmd = append(cmd, "-j", jobID)
	}
	return cmd
}

// Plan returns the arguments a run of cmd would pass to act. Nothing is
// mocked, no proxy is started and no event file is written: the proxy
// address and event path appear as placeholders.
func (a *Act) Plan(cmd []string, opts *RunOpts) []string {
	if opts == nil {
		opts = &RunOpts{}
	}
	env := a.env
	if len(opts.MockAPI) > 0 {
		env = proxyEnv(a.env, "http://<proxy>")
	}
	event, inputs := a.inputArgs()
	eventArgs := []string{}
	if len(event) > 0 {
		eventArgs = []string{"-e", "<event.json>"}
	}
	workflowFile := opts.WorkflowFile
	if workflowFile == "" {
		workflowFile = a.workflowFile
	}
	return a.args(cmd, env, inputs, eventArgs, opts, workflowFile)
}

func (a *Act) args(cmd []string, env *argmap.Map, inputs, eventArgs []string, opts *RunOpts, workflowFile string) []string {
	return slices.Concat(
		cmd,
		a.secrets.Args(),
		a.vars.Args(),
		env.Args(),
		inputs,
		eventArgs,
		a.matrix.Args(),
		a.platforms.Args(),
		a.runArgs(opts, workflowFile),
	)
}

// proxyEnv returns a copy of env with the proxy variables pointing at url.
func proxyEnv(env *argmap.Map, url string) *argmap.Map {
	out := env.Clone()
	for _, k := range []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"} {
		out.Set(k, url)
	}
	return out
}

// runArgs renders the options that follow the argument maps.
func (a *Act) runArgs(opts *RunOpts, workflowFile string) []string {
	var args []string
	if s := opts.ArtifactServer; s != nil {
		args = append(args, "--artifact-server-path", s.Path)
		if s.Port != "" {
			args = append(args, "--artifact-server-port", s.Port)
		}
	}
	if opts.Bind {
		args = append(args, "--bind")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if a.container.Architecture != "" {
		args = append(args, "--container-architecture", a.container.Architecture)
	}
	if a.container.DaemonSocket != "" {
		args = append(args, "--container-daemon-socket", a.container.DaemonSocket)
	}
	if a.container.Options != "" {
		args = append(args, "--container-options", a.container.Options)
	}
	return append(args, "-W", workflowFile)
}

// mockSteps rewrites the workflow files the run will execute and returns
// their paths. The files are the run's workflow file when one is set,
// otherwise every file `act -l` reports with a job accepted by filter.
func (a *Act) mockSteps(ctx context.Context, rc *runContext, opts *RunOpts, filter func(Workflow) bool) ([]string, error) {
	if len(opts.MockSteps) == 0 {
		return nil, nil
	}
	var files []string
	switch {
	case opts.WorkflowFile != "":
		files = []string{filepath.Base(opts.WorkflowFile)}
	case a.workflowFile != a.cwd:
		files = []string{filepath.Base(a.workflowFile)}
	default:
		workflows, err := a.List(ctx, "", rc.Cwd, rc.Cwd)
		if err != nil {
			return nil, err
		}
		for _, w := range workflows {
			if filter(w) && !slices.Contains(files, w.WorkflowFile) {
				files = append(files, w.WorkflowFile)
			}
		}
	}

	paths := make([]string, len(files))
	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			m := workflow.NewStepMocker(file, rc.Cwd)
			if err := m.Mock(opts.MockSteps); err != nil {
				return err
			}
			path, err := m.ResolvePath()
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range paths {
		rc.log.Info("mocked workflow steps", zap.String("path", p))
		if rc.store != nil {
			if err := rc.store.SaveWorkflow(p); err != nil {
				rc.log.Warn("failed to store mocked workflow", zap.Error(err))
			}
		}
	}
	return paths, nil
}

// exec runs act and classifies failures. A non-zero exit code is a normal
// outcome; a signal or an unreachable Docker daemon is not.
func (a *Act) exec(ctx context.Context, cwd, logFile string, args []string, stream io.Writer) (*runner.Result, error) {
	res, err := runner.Run(ctx, runner.Command{
		Binary:  a.binary,
		Args:    args,
		Dir:     cwd,
		LogFile: logFile,
		Stream:  stream,
	})
	if err != nil {
		return nil, &acterrors.RunError{
			Type:    acterrors.ProcessFailed,
			Message: err.Error(),
			Hint:    fmt.Sprintf("set %s or act_binary to the act executable", BinaryEnv),
			Cause:   err,
		}
	}
	if res.Signaled {
		return res, acterrors.NewProcessError("act was terminated by a signal", res.Output)
	}
	if m := dockerUnavailable.FindString(res.Output); m != "" {
		perr := acterrors.NewProcessError(m, res.Output)
		perr.Hint = "start Docker or pass a daemon socket with --container-daemon-socket"
		return res, perr
	}
	return res, nil
}
