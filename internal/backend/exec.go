package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// commandRunner abstracts subprocess execution so the bridge can be tested
// without a real decompiler CLI on PATH.
type commandRunner interface {
	// Run returns combined stdout+stderr and whether the process exited 0.
	Run(ctx context.Context, args ...string) (string, bool)
	// RunSplit keeps stdout and stderr separate and reports the exit code
	// (-1 on timeout or missing executable).
	RunSplit(ctx context.Context, args ...string) (int, string, string)
}

// execRunner runs a fixed binary via os/exec with a per-call timeout.
type execRunner struct {
	binary  string
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("TIMEOUT after %s: %s %s", r.timeout, r.binary, strings.Join(args, " ")), false
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Sprintf("command not found: %s", r.binary), false
		}
		return string(out), false
	}
	return string(out), true
}

func (r *execRunner) RunSplit(ctx context.Context, args ...string) (int, string, string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return -1, "", fmt.Sprintf("TIMEOUT after %s", r.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String()
		}
		return -1, "", fmt.Sprintf("command not found: %s", r.binary)
	}
	return 0, stdout.String(), stderr.String()
}
