package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result captures the outcome of a finished subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Runner executes external tools. The zero value is ready to use.
type Runner struct {
	// Dir is the working directory for every command. Empty means inherit.
	Dir string
	// Env entries in KEY=VALUE form appended to the inherited environment.
	Env []string
}

// WithDir returns a copy of the runner rooted at dir.
func (r Runner) WithDir(dir string) Runner {
	r.Dir = dir
	return r
}

// WithEnv returns a copy of the runner with extra environment entries.
func (r Runner) WithEnv(env ...string) Runner {
	r.Env = append(append([]string{}, r.Env...), env...)
	return r
}

// Run executes the command and fails on non-zero exit, embedding the tool's
// stderr in the returned error.
func (r Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	res, err := r.RunUnchecked(ctx, name, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf(
			"%s %s failed (exit %d): %s",
			name, strings.Join(args, " "), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// RunUnchecked executes the command and returns the result regardless of exit
// status. The error is non-nil only when the process could not be started.
func (r Runner) RunUnchecked(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		// Non-zero exit. The caller decides whether that is an error.
		return res, nil
	default:
		return res, fmt.Errorf("executing %s: %w", name, err)
	}
}

// Available reports whether the named tool can be invoked.
func (r Runner) Available(ctx context.Context, name string, versionArgs ...string) bool {
	res, err := r.RunUnchecked(ctx, name, versionArgs...)
	return err == nil && res.ExitCode == 0
}
