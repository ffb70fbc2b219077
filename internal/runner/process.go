package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command describes one invocation of the act binary.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	// Env is appended to the current environment.
	Env []string
	// LogFile, when set, receives a raw copy of the combined output.
	LogFile string
	// Stream, when set, receives output as it is produced.
	Stream io.Writer
}

// Result holds the combined stdout and stderr of a finished process.
type Result struct {
	Output   string
	ExitCode int
	// Signaled is true when the process did not exit on its own.
	Signaled bool
}

// Run executes the command and waits for it to exit. A non-zero exit code is
// not an error; failing to start the process is.
func Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var out bytes.Buffer
	writers := []io.Writer{&out}
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		writers = append(writers, f)
	}
	if c.Stream != nil {
		writers = append(writers, c.Stream)
	}
	// exec serializes writes when Stdout and Stderr are the same writer.
	w := io.MultiWriter(writers...)
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	res := &Result{Output: out.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", c.Binary, err)
		}
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode == -1 {
			res.Signaled = true
		}
	}
	return res, nil
}
