package workflow

// Step is a single step of a GitHub Actions job. Keys the struct does not
// know about are preserved in Extra so a load/save round trip is lossless.
type Step struct {
	ID               string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name             string         `yaml:"name,omitempty" json:"name,omitempty"`
	If               string         `yaml:"if,omitempty" json:"if,omitempty"`
	Uses             string         `yaml:"uses,omitempty" json:"uses,omitempty"`
	Run              string         `yaml:"run,omitempty" json:"run,omitempty"`
	Shell            string         `yaml:"shell,omitempty" json:"shell,omitempty"`
	WorkingDirectory string         `yaml:"working-directory,omitempty" json:"working-directory,omitempty"`
	With             map[string]any `yaml:"with,omitempty" json:"with,omitempty"`
	Env              map[string]any `yaml:"env,omitempty" json:"env,omitempty"`
	ContinueOnError  any            `yaml:"continue-on-error,omitempty" json:"continue-on-error,omitempty"`
	TimeoutMinutes   any            `yaml:"timeout-minutes,omitempty" json:"timeout-minutes,omitempty"`
	Extra            map[string]any `yaml:",inline" json:"-"`
}

// LocatorKind selects how a step is identified within a job.
type LocatorKind string

const (
	ByID    LocatorKind = "id"
	ByName  LocatorKind = "name"
	ByUses  LocatorKind = "uses"
	ByRun   LocatorKind = "run"
	ByIndex LocatorKind = "index"
	Before  LocatorKind = "before"
	After   LocatorKind = "after"
)

// Locator identifies exactly one step. Ref is used by the id, name, uses and
// run kinds, Index by the index kind. Before and After use Ref when it is set
// and Index otherwise.
type Locator struct {
	Kind  LocatorKind
	Ref   string
	Index int
}

// Positional reports whether the locator inserts a new step rather than
// editing the matched one.
func (l Locator) Positional() bool {
	return l.Kind == Before || l.Kind == After
}

// Replacement is the payload applied to a located step. A non-nil Step is
// merged onto the existing step; otherwise Command replaces its run text.
// Unset lists top-level keys to remove from the existing step.
type Replacement struct {
	Command string
	Step    *Step
	Unset   []string
}

// MockStep pairs a locator with its replacement.
type MockStep struct {
	Locator  Locator
	MockWith Replacement
}

// MockSteps maps a job id to the directives applied to that job, in order.
type MockSteps map[string][]MockStep
