package act

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Workflow is one row of `act -l`.
type Workflow struct {
	JobID        string `json:"job_id"`
	JobName      string `json:"job_name"`
	WorkflowName string `json:"workflow_name"`
	WorkflowFile string `json:"workflow_file"`
	Events       string `json:"events"`
}

// List runs `act -l` and returns the jobs it reports. An empty event lists
// every job; empty cwd and workflowFile use the instance values.
func (a *Act) List(ctx context.Context, event, cwd, workflowFile string) ([]Workflow, error) {
	if cwd == "" {
		cwd = a.cwd
	}
	if workflowFile == "" {
		workflowFile = a.workflowFile
	}
	args := []string{"-W", workflowFile, "-l"}
	if event != "" {
		args = append([]string{event}, args...)
	}
	res, err := a.exec(ctx, cwd, "", args, nil)
	if err != nil {
		return nil, err
	}
	workflows := parseList(res.Output)
	a.log.Debug("listed workflows", zap.Int("count", len(workflows)), zap.String("cwd", cwd))
	return workflows, nil
}

// parseList reads the table printed by `act -l`. The header and the final
// line are skipped, as are lines without column separators (warnings).
func parseList(out string) []Workflow {
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return []Workflow{}
	}
	workflows := []Workflow{}
	for _, line := range lines[1 : len(lines)-1] {
		cols := columns(line)
		if len(cols) < 6 {
			continue
		}
		workflows = append(workflows, Workflow{
			JobID:        cols[1],
			JobName:      cols[2],
			WorkflowName: cols[3],
			WorkflowFile: cols[4],
			Events:       cols[5],
		})
	}
	return workflows
}

// columns splits a table row on runs of two or more spaces.
func columns(line string) []string {
	var cols []string
	for _, c := range strings.Split(line, "  ") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// hasEvent reports whether the comma separated event list contains event.
func (w Workflow) hasEvent(event string) bool {
	for _, e := range strings.Split(w.Events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}
