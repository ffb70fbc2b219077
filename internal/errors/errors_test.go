package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunErrorMessage(t *testing.T) {
	err := NewStepNotFoundError(`{"name":"missing"}`, "build", "/repo/.github/workflows/ci.yml")
	assert.Equal(t, "[STEP_NOT_FOUND] could not find step {\"name\":\"missing\"} in job build\nin /repo/.github/workflows/ci.yml", err.Error())
}

func TestRunErrorIs(t *testing.T) {
	var err error = fmt.Errorf("mocking: %w", NewNotFoundError("could not locate ci.yml"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RunError{Type: ProxyLifecycle, Message: "listen", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrProxyLifecycle)
}

func TestProcessErrorCarriesOutput(t *testing.T) {
	err := NewProcessError("act exited abnormally", "transcript")
	var re *RunError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "transcript", re.Output)
	assert.Equal(t, "[PROCESS_FAILED] act exited abnormally", err.Error())
}
