package analyzers

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"
)

const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Result holds the outcome of one tool execution.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// RunFunc executes a command. Run is the production implementation.
type RunFunc func(ctx context.Context, name string, args []string, dir string) (Result, error)

// Run executes a command with ctx, capturing output and duration.
// A deadline maps to exit code 124 and a missing binary to 127.
func Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = 1
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = ExitTimeout
	} else if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}
