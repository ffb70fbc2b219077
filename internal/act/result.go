package act

import "github.com/stevehiehn/acttest/internal/output"

// Result is the structured outcome of one act run.
type Result struct {
	RunID    string              `json:"run_id"`
	Success  bool                `json:"success"`
	ExitCode int                 `json:"exit_code"`
	Steps    []output.StepResult `json:"steps"`
	// Mocked lists the workflow files rewritten before the run.
	Mocked    []string `json:"mocked,omitempty"`
	ProxyAddr string   `json:"proxy_addr,omitempty"`
	Artifacts string   `json:"artifacts,omitempty"`
}
