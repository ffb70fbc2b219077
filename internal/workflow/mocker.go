package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// StepMocker rewrites the steps of one workflow file.
type StepMocker struct {
	workflowFile string
	cwd          string
}

// NewStepMocker returns a mocker for workflowFile, resolved against cwd.
func NewStepMocker(workflowFile, cwd string) *StepMocker {
	return &StepMocker{workflowFile: workflowFile, cwd: cwd}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolvePath finds the workflow file on disk. It tries cwd/file, then
// cwd/workflows/file when cwd is itself a .github directory, then
// cwd/.github/workflows/file.
func (m *StepMocker) ResolvePath() (string, error) {
	direct := filepath.Join(m.cwd, m.workflowFile)
	if exists(direct) {
		return direct, nil
	}
	if strings.HasSuffix(filepath.Clean(m.cwd), ".github") {
		return filepath.Join(m.cwd, "workflows", m.workflowFile), nil
	}
	conventional := filepath.Join(m.cwd, ".github", "workflows", m.workflowFile)
	if exists(conventional) {
		return conventional, nil
	}
	return "", acterrors.NewNotFoundError(fmt.Sprintf("could not locate %s", m.workflowFile))
}

type insertion struct {
	index int
	step  MockStep
}

// Mock applies every directive and writes the workflow back once. Nothing is
// written if any directive fails.
func (m *StepMocker) Mock(ms MockSteps) error {
	if err := Validate(ms); err != nil {
		return err
	}
	path, err := m.ResolvePath()
	if err != nil {
		return err
	}
	doc, err := LoadFile(path)
	if err != nil {
		return err
	}

	jobs := make([]string, 0, len(ms))
	for jobID := range ms {
		jobs = append(jobs, jobID)
	}
	sort.Strings(jobs)

	for _, jobID := range jobs {
		if err := mockJob(doc, jobID, ms[jobID], path); err != nil {
			return err
		}
	}
	return doc.WriteFile(path)
}

func mockJob(doc *Document, jobID string, directives []MockStep, path string) error {
	if len(directives) == 0 {
		return nil
	}
	steps, _, err := doc.Steps(jobID)
	if err != nil {
		return err
	}

	var pending []insertion
	for _, d := range directives {
		idx := locate(steps, d.Locator)
		if idx < 0 {
			return acterrors.NewStepNotFoundError(d.Locator.Query(), jobID, path)
		}
		if !d.Locator.Positional() {
			steps[idx] = applyReplacement(steps[idx], d.MockWith)
			continue
		}
		// Earlier insertions at lower indices shift this target to the right.
		shift := 0
		for _, p := range pending {
			if p.index < idx {
				shift++
			}
		}
		pending = append(pending, insertion{index: idx + shift, step: d})
	}

	for _, p := range pending {
		steps = insert(steps, p)
	}
	return doc.SetSteps(jobID, steps)
}

func locate(steps []Step, l Locator) int {
	for i, s := range steps {
		if l.Matches(s, i) {
			return i
		}
	}
	return -1
}

func insert(steps []Step, p insertion) []Step {
	at := p.index
	if p.step.Locator.Kind == Before {
		if at <= 0 {
			at = 0
		} else {
			at--
		}
	} else if at >= len(steps)-1 {
		at = len(steps)
	} else {
		at++
	}
	s := cloneStep(*p.step.MockWith.Step)
	steps = append(steps, Step{})
	copy(steps[at+1:], steps[at:])
	steps[at] = s
	return steps
}
