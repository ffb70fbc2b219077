package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// setupWorkflow copies the fixture into a fresh .github/workflows directory
// and returns the repository root.
func setupWorkflow(t *testing.T) (root, path string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "steps.yaml"))
	require.NoError(t, err)

	root = t.TempDir()
	dir := filepath.Join(root, ".github", "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path = filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return root, path
}

func stepsAt(t *testing.T, path, job string) []Step {
	t.Helper()
	doc, err := LoadFile(path)
	require.NoError(t, err)
	steps, ok, err := doc.Steps(job)
	require.NoError(t, err)
	require.True(t, ok)
	return steps
}

func TestResolvePath(t *testing.T) {
	root, conventional := setupWorkflow(t)

	t.Run("conventional location", func(t *testing.T) {
		p, err := NewStepMocker("workflow.yaml", root).ResolvePath()
		require.NoError(t, err)
		assert.Equal(t, conventional, p)
	})

	t.Run("directly under cwd", func(t *testing.T) {
		dir := filepath.Join(root, ".github", "workflows")
		p, err := NewStepMocker("workflow.yaml", dir).ResolvePath()
		require.NoError(t, err)
		assert.Equal(t, conventional, p)
	})

	t.Run("cwd is the .github directory", func(t *testing.T) {
		cwd := filepath.Join(t.TempDir(), ".github")
		p, err := NewStepMocker("ci.yml", cwd).ResolvePath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cwd, "workflows", "ci.yml"), p)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := NewStepMocker("missing.yml", root).ResolvePath()
		require.Error(t, err)
		assert.True(t, errors.Is(err, acterrors.ErrNotFound))
		assert.Contains(t, err.Error(), "missing.yml")
	})
}

func TestMockJobNotFound(t *testing.T) {
	root, path := setupWorkflow(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"incorrectName": {{Locator: LocateName("step"), MockWith: ReplaceRun("echo step")}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acterrors.ErrStepNotFound))
	assert.Equal(t, `[STEP_NOT_FOUND] could not find step {"name":"step"} in job incorrectName`+"\nin "+path, err.Error())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMockIndexNotFound(t *testing.T) {
	root, _ := setupWorkflow(t)
	err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"name": {{Locator: LocateIndex(42), MockWith: ReplaceRun("echo step")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `could not find step {"index":42} in job name`)
}

func TestMockFailureLeavesFileUntouched(t *testing.T) {
	root, path := setupWorkflow(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"name": {
			{Locator: LocateID("echo"), MockWith: ReplaceRun("echo mocked")},
			{Locator: LocateName("nope"), MockWith: ReplaceRun("echo nope")},
		},
	})
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMockLocators(t *testing.T) {
	tests := []struct {
		name    string
		locator Locator
		index   int
	}{
		{"id", LocateID("echo"), 2},
		{"name", LocateName("secrets"), 1},
		{"uses", LocateUses("actions/checkout@v3"), 0},
		{"run matches first", LocateRun("echo run"), 2},
		{"index", LocateIndex(3), 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root, path := setupWorkflow(t)
			original := stepsAt(t, path, "name")

			err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
				"name": {{Locator: tc.locator, MockWith: ReplaceRun("echo step")}},
			})
			require.NoError(t, err)

			steps := stepsAt(t, path, "name")
			require.Len(t, steps, len(original))
			for i := range steps {
				if i == tc.index {
					assert.Equal(t, "echo step", steps[i].Run)
					assert.Empty(t, steps[i].Uses)
					continue
				}
				assert.Equal(t, original[i], steps[i])
			}
		})
	}
}

func TestMockWithCommandKeepsOtherFields(t *testing.T) {
	root, path := setupWorkflow(t)
	err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"name": {
			{Locator: LocateID("echo"), MockWith: ReplaceRun("echo step")},
			{Locator: LocateUses("actions/checkout@v3"), MockWith: ReplaceRun("echo checkout")},
		},
	})
	require.NoError(t, err)

	steps := stepsAt(t, path, "name")
	assert.Equal(t, Step{Run: "echo checkout"}, steps[0])
	assert.Equal(t, "echo", steps[2].ID)
	assert.Equal(t, "echo", steps[2].Name)
	assert.Equal(t, "echo step", steps[2].Run)
	assert.Equal(t, 5, steps[2].TimeoutMinutes)
}

func TestMockWithStep(t *testing.T) {
	root, path := setupWorkflow(t)
	err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"name": {
			{
				Locator: LocateUses("actions/checkout@v3"),
				MockWith: ReplaceStep(Step{
					Uses: "actions/setup-node",
					With: map[string]any{"nodeVersion": 16},
				}),
			},
			{
				Locator:  LocateName("secrets"),
				MockWith: ReplaceStep(Step{Env: map[string]any{"TEST1": "val"}}, "name"),
			},
			{
				Locator:  LocateIndex(3),
				MockWith: ReplaceStep(Step{With: map[string]any{"cache": "npm"}}),
			},
		},
	})
	require.NoError(t, err)

	steps := stepsAt(t, path, "name")
	assert.Equal(t, Step{Uses: "actions/setup-node", With: map[string]any{"nodeVersion": 16}}, steps[0])
	assert.Equal(t, Step{Run: "echo $TEST1", Env: map[string]any{"TEST1": "val", "TEST2": "keep"}}, steps[1])
	assert.Equal(t, map[string]any{"nodeVersion": 14, "cache": "npm"}, steps[3].With)
}

func TestMockDeleteKeyIsRepeatable(t *testing.T) {
	root, path := setupWorkflow(t)
	directives := MockSteps{
		"name": {{
			Locator:  LocateName("secrets"),
			MockWith: ReplaceStep(Step{Env: map[string]any{"TEST2": nil}}),
		}},
	}
	m := NewStepMocker("workflow.yaml", root)

	require.NoError(t, m.Mock(directives))
	once := stepsAt(t, path, "name")
	assert.NotContains(t, once[1].Env, "TEST2")
	assert.Contains(t, once[1].Env, "TEST1")

	require.NoError(t, m.Mock(directives))
	twice := stepsAt(t, path, "name")
	assert.Equal(t, once, twice)
}

func TestMockInsert(t *testing.T) {
	added := Step{Name: "added new step", Run: "echo new step"}
	tests := []struct {
		name    string
		locator Locator
		index   int
	}{
		{"before index", BeforeIndex(0), 0},
		{"before name", BeforeStep("secrets"), 0},
		{"after index", AfterIndex(3), 4},
		{"after name", AfterStep("secrets"), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root, path := setupWorkflow(t)
			original := stepsAt(t, path, "name")

			err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
				"name": {{Locator: tc.locator, MockWith: ReplaceStep(added)}},
			})
			require.NoError(t, err)

			want := append([]Step{}, original[:tc.index]...)
			want = append(want, added)
			want = append(want, original[tc.index:]...)
			assert.Equal(t, want, stepsAt(t, path, "name"))
		})
	}
}

func TestMockBatchedInsertions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(`jobs:
  build:
    steps:
      - run: A
      - run: B
      - run: C
      - run: D
`), 0o644))

	x := Step{Run: "X"}
	err := NewStepMocker("ci.yml", dir).Mock(MockSteps{
		"build": {
			{Locator: AfterIndex(1), MockWith: ReplaceStep(x)},
			{Locator: BeforeIndex(0), MockWith: ReplaceStep(x)},
		},
	})
	require.NoError(t, err)

	var runs []string
	for _, s := range stepsAt(t, path, "build") {
		runs = append(runs, s.Run)
	}
	assert.Equal(t, []string{"X", "A", "B", "X", "C", "D"}, runs)
}

func TestMockInsertionsWithUpdate(t *testing.T) {
	root, path := setupWorkflow(t)
	original := stepsAt(t, path, "name")
	added := Step{Name: "added new step", Run: "echo new step"}

	err := NewStepMocker("workflow.yaml", root).Mock(MockSteps{
		"name": {
			{Locator: AfterIndex(1), MockWith: ReplaceStep(added)},
			{Locator: BeforeIndex(0), MockWith: ReplaceStep(added)},
			{Locator: BeforeIndex(2), MockWith: ReplaceStep(added)},
			{Locator: LocateIndex(3), MockWith: ReplaceRun("echo updated")},
		},
	})
	require.NoError(t, err)

	last := original[3]
	last.Run = "echo updated"
	want := []Step{added, original[0], original[1], added, added, original[2], last}
	assert.Equal(t, want, stepsAt(t, path, "name"))
}

func TestMockEmptyDirectivesRewritesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: Workflow\n"), 0o644))

	require.NoError(t, NewStepMocker("ci.yml", dir).Mock(MockSteps{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: Workflow\n", string(data))
}

func TestMockRejectsInvalidDirectiveBeforeIO(t *testing.T) {
	err := NewStepMocker("ci.yml", t.TempDir()).Mock(MockSteps{
		"build": {{Locator: BeforeIndex(0), MockWith: ReplaceRun("echo x")}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acterrors.ErrValidation))
}
