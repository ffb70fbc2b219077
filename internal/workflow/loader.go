package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document is a parsed workflow file. Only the steps of the jobs that are
// rewritten change; every other node is written back as it was read.
type Document struct {
	root yaml.Node
}

// LoadFile reads and parses a workflow YAML file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Load(data)
}

// Load parses workflow YAML bytes.
func Load(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if d.root.Kind != 0 {
		if len(d.root.Content) == 0 || d.root.Content[0].Kind != yaml.MappingNode {
			return nil, fmt.Errorf("workflow is not a mapping")
		}
	}
	return &d, nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func (d *Document) top() *yaml.Node {
	if d.root.Kind == 0 || len(d.root.Content) == 0 {
		return nil
	}
	return d.root.Content[0]
}

func (d *Document) job(id string) *yaml.Node {
	return lookup(lookup(d.top(), "jobs"), id)
}

// Jobs lists the job ids in document order.
func (d *Document) Jobs() []string {
	jobs := lookup(d.top(), "jobs")
	if jobs == nil || jobs.Kind != yaml.MappingNode {
		return nil
	}
	ids := make([]string, 0, len(jobs.Content)/2)
	for i := 0; i+1 < len(jobs.Content); i += 2 {
		ids = append(ids, jobs.Content[i].Value)
	}
	return ids
}

// Steps decodes the steps of a job. ok is false when the job does not exist.
func (d *Document) Steps(jobID string) (steps []Step, ok bool, err error) {
	job := d.job(jobID)
	if job == nil {
		return nil, false, nil
	}
	seq := lookup(job, "steps")
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil, true, nil
	}
	steps = make([]Step, len(seq.Content))
	for i, n := range seq.Content {
		if err := n.Decode(&steps[i]); err != nil {
			return nil, true, fmt.Errorf("job %s step %d: %w", jobID, i, err)
		}
	}
	return steps, true, nil
}

// SetSteps replaces the steps of an existing job.
func (d *Document) SetSteps(jobID string, steps []Step) error {
	job := d.job(jobID)
	if job == nil || job.Kind != yaml.MappingNode {
		return fmt.Errorf("job %q not found", jobID)
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := range steps {
		n := &yaml.Node{}
		if err := n.Encode(&steps[i]); err != nil {
			return fmt.Errorf("job %s step %d: %w", jobID, i, err)
		}
		seq.Content = append(seq.Content, n)
	}

	for i := 0; i+1 < len(job.Content); i += 2 {
		if job.Content[i].Value == "steps" {
			job.Content[i+1] = seq
			return nil
		}
	}
	job.Content = append(job.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "steps"}, seq)
	return nil
}

// Bytes serializes the document with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	if d.root.Kind == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&d.root); err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with the serialized document. The new content is
// written to a sibling temp file first and renamed into place.
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".acttest-*.yml")
	if err != nil {
		return fmt.Errorf("writing workflow file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing workflow file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("writing workflow file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing workflow file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing workflow file: %w", err)
	}
	return nil
}
