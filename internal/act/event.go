package act

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// eventFile is the temporary event payload of one run.
type eventFile struct {
	dir string
}

// inputArgs returns the --input arguments for a run. With an event payload
// the inputs are folded into the payload instead and no arguments are
// returned.
func (a *Act) inputArgs() (event map[string]any, args []string) {
	if len(a.event) == 0 {
		return nil, a.inputs.Args()
	}
	event = maps.Clone(a.event)
	inputs := map[string]any{}
	for k, v := range a.inputs.Entries() {
		inputs[k] = v
	}
	event["inputs"] = inputs
	return event, []string{}
}

// writeEvent stores event as event.json in a fresh temporary directory and
// returns the -e arguments. An empty event writes nothing.
func writeEvent(event map[string]any) (*eventFile, []string, error) {
	if len(event) == 0 {
		return &eventFile{}, []string{}, nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding event: %w", err)
	}
	dir, err := os.MkdirTemp("", "acttest-event-")
	if err != nil {
		return nil, nil, fmt.Errorf("creating event dir: %w", err)
	}
	path := filepath.Join(dir, "event.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, nil, fmt.Errorf("writing event: %w", err)
	}
	return &eventFile{dir: dir}, []string{"-e", path}, nil
}

func (e *eventFile) remove() error {
	if e == nil || e.dir == "" {
		return nil
	}
	err := os.RemoveAll(e.dir)
	e.dir = ""
	return err
}
