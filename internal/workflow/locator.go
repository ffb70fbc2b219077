package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

func LocateID(id string) Locator     { return Locator{Kind: ByID, Ref: id} }
func LocateName(name string) Locator { return Locator{Kind: ByName, Ref: name} }
func LocateUses(uses string) Locator { return Locator{Kind: ByUses, Ref: uses} }
func LocateRun(run string) Locator   { return Locator{Kind: ByRun, Ref: run} }
func LocateIndex(i int) Locator      { return Locator{Kind: ByIndex, Index: i} }

// BeforeStep inserts ahead of the first step whose id, name, uses or run is ref.
func BeforeStep(ref string) Locator { return Locator{Kind: Before, Ref: ref} }
func BeforeIndex(i int) Locator     { return Locator{Kind: Before, Index: i} }
func AfterStep(ref string) Locator  { return Locator{Kind: After, Ref: ref} }
func AfterIndex(i int) Locator      { return Locator{Kind: After, Index: i} }

// ReplaceRun is shorthand for replacing a step's run command.
func ReplaceRun(cmd string) Replacement { return Replacement{Command: cmd} }

// ReplaceStep merges s onto the located step, or inserts it for before/after.
func ReplaceStep(s Step, unset ...string) Replacement {
	return Replacement{Step: &s, Unset: unset}
}

// Matches reports whether s is the step l identifies at position i.
func (l Locator) Matches(s Step, i int) bool {
	switch l.Kind {
	case ByID:
		return s.ID == l.Ref
	case ByName:
		return s.Name == l.Ref
	case ByUses:
		return s.Uses == l.Ref
	case ByRun:
		return s.Run == l.Ref
	case ByIndex:
		return i == l.Index
	case Before, After:
		if l.Ref != "" {
			return s.ID == l.Ref || s.Name == l.Ref || s.Uses == l.Ref || s.Run == l.Ref
		}
		return i == l.Index
	}
	return false
}

// Query renders the locator as a one-key JSON object, e.g. {"name":"build"}.
func (l Locator) Query() string {
	var v any = l.Ref
	if l.Kind == ByIndex || (l.Positional() && l.Ref == "") {
		v = l.Index
	}
	data, err := json.Marshal(map[string]any{string(l.Kind): v})
	if err != nil {
		return string(l.Kind)
	}
	return string(data)
}

func (l Locator) String() string {
	return l.Query()
}

// UnmarshalYAML decodes a directive such as
//
//	name: checkout
//	mockWith: echo skipped
//
// rejecting directives that carry more than one way of identifying the step.
func (m *MockStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mock step must be a mapping", value.Line)
	}

	var kinds []LocatorKind
	var hasMock bool
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		switch LocatorKind(key) {
		case ByID, ByName, ByUses, ByRun:
			var ref string
			if err := val.Decode(&ref); err != nil {
				return fmt.Errorf("line %d: %s: %w", val.Line, key, err)
			}
			m.Locator = Locator{Kind: LocatorKind(key), Ref: ref}
			kinds = append(kinds, LocatorKind(key))
			continue
		case ByIndex:
			var idx int
			if err := val.Decode(&idx); err != nil {
				return fmt.Errorf("line %d: index: %w", val.Line, err)
			}
			m.Locator = Locator{Kind: ByIndex, Index: idx}
			kinds = append(kinds, ByIndex)
			continue
		case Before, After:
			loc := Locator{Kind: LocatorKind(key)}
			if val.ShortTag() == "!!int" {
				if err := val.Decode(&loc.Index); err != nil {
					return fmt.Errorf("line %d: %s: %w", val.Line, key, err)
				}
			} else if err := val.Decode(&loc.Ref); err != nil {
				return fmt.Errorf("line %d: %s: %w", val.Line, key, err)
			} else if strings.TrimSpace(loc.Ref) == "" {
				return acterrors.NewValidationError(
					fmt.Sprintf("line %d: %s is empty", val.Line, key),
					"Give a step index or the id, name, uses or run of a step",
				)
			}
			m.Locator = loc
			kinds = append(kinds, loc.Kind)
			continue
		}
		if key != "mockWith" {
			return fmt.Errorf("line %d: unknown mock step field %q", value.Content[i].Line, key)
		}
		r, err := decodeReplacement(val)
		if err != nil {
			return err
		}
		m.MockWith = r
		hasMock = true
	}

	switch {
	case len(kinds) == 0:
		return acterrors.NewValidationError(
			fmt.Sprintf("line %d: mock step has no step identifier", value.Line),
			"Use one of: id, name, uses, run, index, before, after",
		)
	case len(kinds) > 1:
		return acterrors.NewValidationError(
			fmt.Sprintf("line %d: mock step has multiple identifiers %v", value.Line, kinds),
			"A mock step must use exactly one of: id, name, uses, run, index, before, after",
		)
	case !hasMock:
		return acterrors.NewValidationError(
			fmt.Sprintf("line %d: mock step %s has no mockWith", value.Line, m.Locator.Query()),
			"",
		)
	}
	return nil
}

func decodeReplacement(n *yaml.Node) (Replacement, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return Replacement{}, fmt.Errorf("line %d: mockWith must not be null", n.Line)
		}
		return Replacement{Command: n.Value}, nil
	case yaml.MappingNode:
		var s Step
		if err := n.Decode(&s); err != nil {
			return Replacement{}, fmt.Errorf("line %d: mockWith: %w", n.Line, err)
		}
		r := Replacement{Step: &s}
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i+1].ShortTag() == "!!null" {
				r.Unset = append(r.Unset, n.Content[i].Value)
			}
		}
		return r, nil
	}
	return Replacement{}, fmt.Errorf("line %d: mockWith must be a string or a step", n.Line)
}

// LoadMockSteps reads directives from a YAML or JSON file.
func LoadMockSteps(path string) (MockSteps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock steps: %w", err)
	}
	return ParseMockSteps(data)
}

// ParseMockSteps decodes directives keyed by job id.
func ParseMockSteps(data []byte) (MockSteps, error) {
	var ms MockSteps
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("parsing mock steps: %w", err)
	}
	if ms == nil {
		ms = MockSteps{}
	}
	return ms, nil
}
