// Package act drives the act binary. It assembles command-line arguments,
// rewrites workflow steps, starts the mock proxy, runs the process and parses
// its transcript into step results.
package act

import (
	"os"

	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/argmap"
)

// BinaryEnv overrides the act binary path.
const BinaryEnv = "ACT_BINARY"

const defaultStepSummary = "/dev/stdout"

// Option configures an Act.
type Option func(*Act)

// WithLogger sets the logger. A no-op logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(a *Act) { a.log = l }
}

// WithBinary sets the act binary to execute.
func WithBinary(path string) Option {
	return func(a *Act) { a.binary = path }
}

// WithImageSize selects the default runner images written to ~/.actrc.
func WithImageSize(size string) Option {
	return func(a *Act) { a.imageSize = size }
}

// WithHomeDir sets the directory holding .actrc.
func WithHomeDir(dir string) Option {
	return func(a *Act) { a.home = dir }
}

// WithArtifacts stores the transcript and results of every run under
// root/.acttest/runs/<run-id>.
func WithArtifacts(root string) Option {
	return func(a *Act) { a.artifactRoot = root }
}

// WithProxyListenHost sets the interface the mock proxy binds.
func WithProxyListenHost(host string) Option {
	return func(a *Act) { a.proxyHost = host }
}

// WithProxyAdvertiseIP sets the address reported to act's containers instead
// of the first non-loopback IPv4 address.
func WithProxyAdvertiseIP(ip string) Option {
	return func(a *Act) { a.proxyIP = ip }
}

// ContainerOpts are passed to act's container runtime.
type ContainerOpts struct {
	Architecture string
	DaemonSocket string
	Options      string
}

// Act holds the arguments shared by every run. It is not safe for concurrent
// use.
type Act struct {
	log          *zap.Logger
	binary       string
	imageSize    string
	home         string
	artifactRoot string
	proxyHost    string
	proxyIP      string

	cwd          string
	workflowFile string

	secrets   *argmap.Map
	vars      *argmap.Map
	env       *argmap.Map
	inputs    *argmap.Map
	matrix    *argmap.Map
	platforms *argmap.Map
	event     map[string]any
	container ContainerOpts
}

// New returns an Act rooted at cwd. An empty cwd uses the process working
// directory and an empty workflowFile makes act search cwd. If ~/.actrc does
// not exist it is created with the default platform images.
func New(cwd, workflowFile string, opts ...Option) (*Act, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cwd = wd
	}
	if workflowFile == "" {
		workflowFile = cwd
	}
	a := &Act{
		log:          zap.NewNop(),
		imageSize:    ImageMedium,
		cwd:          cwd,
		workflowFile: workflowFile,
		secrets:      argmap.New("-s"),
		vars:         argmap.New("--var"),
		env:          argmap.New("--env"),
		inputs:       argmap.New("--input"),
		matrix:       argmap.NewWithDelimiter("--matrix", ":"),
		platforms:    argmap.New("--platform"),
	}
	for _, o := range opts {
		o(a)
	}
	if a.binary == "" {
		a.binary = os.Getenv(BinaryEnv)
	}
	if a.binary == "" {
		a.binary = "act"
	}
	if err := a.setDefaultImage(); err != nil {
		return nil, err
	}
	a.SetGithubStepSummary(defaultStepSummary)
	return a, nil
}

func (a *Act) Cwd() string          { return a.cwd }
func (a *Act) WorkflowFile() string { return a.workflowFile }

func (a *Act) SetCwd(cwd string) *Act {
	a.cwd = cwd
	return a
}

func (a *Act) SetWorkflowFile(file string) *Act {
	a.workflowFile = file
	return a
}

func (a *Act) SetSecret(key, val string) *Act {
	a.secrets.Set(key, val)
	return a
}

func (a *Act) DeleteSecret(key string) *Act {
	a.secrets.Delete(key)
	return a
}

func (a *Act) ClearSecret() *Act {
	a.secrets.Clear()
	return a
}

func (a *Act) SetVar(key, val string) *Act {
	a.vars.Set(key, val)
	return a
}

func (a *Act) DeleteVar(key string) *Act {
	a.vars.Delete(key)
	return a
}

func (a *Act) ClearVar() *Act {
	a.vars.Clear()
	return a
}

func (a *Act) SetEnv(key, val string) *Act {
	a.env.Set(key, val)
	return a
}

func (a *Act) DeleteEnv(key string) *Act {
	a.env.Delete(key)
	return a
}

// ClearEnv removes every env var except GITHUB_STEP_SUMMARY, which is reset
// to stdout.
func (a *Act) ClearEnv() *Act {
	a.env.Clear()
	return a.SetGithubStepSummary(defaultStepSummary)
}

// SetGithubToken sets the GITHUB_TOKEN secret.
func (a *Act) SetGithubToken(token string) *Act {
	return a.SetSecret("GITHUB_TOKEN", token)
}

// SetGithubStepSummary points GITHUB_STEP_SUMMARY at file.
func (a *Act) SetGithubStepSummary(file string) *Act {
	return a.SetEnv("GITHUB_STEP_SUMMARY", file)
}

// SetEvent sets the event payload. A non-empty payload is written to a
// temporary file for each run and receives the inputs under "inputs".
func (a *Act) SetEvent(event map[string]any) *Act {
	a.event = event
	return a
}

func (a *Act) SetInput(key, val string) *Act {
	a.inputs.Set(key, val)
	return a
}

func (a *Act) DeleteInput(key string) *Act {
	a.inputs.Delete(key)
	return a
}

func (a *Act) ClearInput() *Act {
	a.inputs.Clear()
	return a
}

func (a *Act) SetMatrix(key string, vals []string) *Act {
	a.matrix.SetList(key, vals)
	return a
}

func (a *Act) DeleteMatrix(key string) *Act {
	a.matrix.Delete(key)
	return a
}

func (a *Act) ClearMatrix() *Act {
	a.matrix.Clear()
	return a
}

func (a *Act) SetPlatforms(key, val string) *Act {
	a.platforms.Set(key, val)
	return a
}

func (a *Act) DeletePlatforms(key string) *Act {
	a.platforms.Delete(key)
	return a
}

func (a *Act) ClearPlatforms() *Act {
	a.platforms.Clear()
	return a
}

func (a *Act) SetContainerArchitecture(arch string) *Act {
	a.container.Architecture = arch
	return a
}

func (a *Act) SetContainerDaemonSocket(socket string) *Act {
	a.container.DaemonSocket = socket
	return a
}

func (a *Act) SetCustomContainerOpts(opts string) *Act {
	a.container.Options = opts
	return a
}

func (a *Act) ClearAllContainerOpts() *Act {
	a.container = ContainerOpts{}
	return a
}
