package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the outcome of an external process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   string
}

// Runner executes an external command and captures its output.
// A non-zero exit is reported through Result.ExitCode, not as an error;
// the error return is reserved for processes that could not run at all.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Result, error)
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = ExecRunner{}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// Run executes name with args and blocks until it exits.
func (ExecRunner) Run(ctx context.Context, name string, args []string) (Result, error) {
	// #nosec G204 - binary paths are set by the application, not user input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("run %s: %w", name, err)
}
