package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	transcriptFile = "transcript.log"
	resultFile     = "result.json"
	mockedDir      = "workflows"
)

// Store keeps the artifacts of one act run.
type Store struct {
	RunID   string
	BaseDir string // <root>/.acttest/runs/<run_id>
}

// New creates a store for a given run ID, rooted at root.
func New(runID, root string) (*Store, error) {
	base := filepath.Join(root, ".acttest", "runs", runID)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{RunID: runID, BaseDir: base}, nil
}

// TranscriptPath is where the raw act output is teed to.
func (s *Store) TranscriptPath() string {
	return filepath.Join(s.BaseDir, transcriptFile)
}

// WriteTranscript stores the raw act output.
func (s *Store) WriteTranscript(output string) error {
	return os.WriteFile(s.TranscriptPath(), []byte(output), 0o644)
}

// SaveWorkflow keeps a copy of a workflow file as it was after mocking.
func (s *Store) SaveWorkflow(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading mocked workflow: %w", err)
	}
	dir := filepath.Join(s.BaseDir, mockedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, filepath.Base(path)), data, 0o644)
}

// WriteResult writes the final result JSON.
func (s *Store) WriteResult(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.BaseDir, resultFile), data, 0o644)
}
