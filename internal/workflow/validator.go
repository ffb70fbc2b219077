package workflow

import (
	"fmt"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// Validate checks directives for structural correctness before any file is
// touched.
func Validate(ms MockSteps) error {
	for jobID, steps := range ms {
		if jobID == "" {
			return acterrors.NewValidationError("mock steps contain an empty job id", "")
		}
		for i, m := range steps {
			if err := validateMockStep(m); err != nil {
				err.Job = jobID
				err.Message = fmt.Sprintf("mock step %d: %s", i, err.Message)
				return err
			}
		}
	}
	return nil
}

func validateMockStep(m MockStep) *acterrors.RunError {
	l := m.Locator
	switch l.Kind {
	case ByID, ByName, ByUses, ByRun:
		if l.Ref == "" {
			return acterrors.NewValidationError(
				fmt.Sprintf("%s identifier is empty", l.Kind),
				"Provide a non-empty value to match against",
			)
		}
	case ByIndex, Before, After:
		if l.Ref == "" && l.Index < 0 {
			return acterrors.NewValidationError(
				fmt.Sprintf("%s index %d is negative", l.Kind, l.Index),
				"",
			)
		}
	case "":
		return acterrors.NewValidationError(
			"mock step has no step identifier",
			"Use one of: id, name, uses, run, index, before, after",
		)
	default:
		return acterrors.NewValidationError(fmt.Sprintf("unknown identifier %q", l.Kind), "")
	}

	if l.Positional() && m.MockWith.Step == nil {
		return acterrors.NewValidationError(
			fmt.Sprintf("%s requires a step to insert", l.Query()),
			"Give mockWith as a step mapping, e.g. {run: echo hi}",
		)
	}
	if m.MockWith.Step == nil && m.MockWith.Command == "" {
		return acterrors.NewValidationError(
			fmt.Sprintf("%s has no replacement", l.Query()),
			"Set mockWith to a command string or a step",
		)
	}
	return nil
}
