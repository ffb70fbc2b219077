package output

// Step status values reported by the parser.
const (
	StatusSuccess = 0
	StatusFailure = 1
	// StatusPending marks a step that started but has not been finalized.
	StatusPending = -1
)

// StepResult describes the outcome of a single step as reconstructed from the
// act transcript.
type StepResult struct {
	Name    string            `json:"name"`
	Status  int               `json:"status"`
	Output  string            `json:"output"`
	Outputs map[string]string `json:"outputs"`
	Groups  []Group           `json:"groups,omitempty"`
}

// Group is a named ::group:: block within a step's output.
type Group struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// Succeeded reports whether every step in results finished with status 0.
func Succeeded(results []StepResult) bool {
	for _, r := range results {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}
