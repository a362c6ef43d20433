package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMemoryLimit = 50 << 20
)

// Runner executes an external tester program on a three-address listing. The
// child gets a wall-clock timeout and, where the platform supports it, an
// address-space ceiling. Neither violation affects the host process.
type Runner struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	// MemoryLimit is the address-space ceiling in bytes. Zero disables it.
	MemoryLimit uint64
	Verbose     bool
	// Stderr receives the child's standard error when Verbose is set.
	Stderr io.Writer
}

func NewRunner(command string, args ...string) *Runner {
	return &Runner{
		Command:     command,
		Args:        args,
		Timeout:     DefaultTimeout,
		MemoryLimit: DefaultMemoryLimit,
	}
}

// Run starts the tester and returns its output, filtered by FilterOutput.
// Timeouts and limit violations are returned as *RuntimeError.
func (r *Runner) Run(ctx context.Context) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = time.Second
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Verbose && r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", r.Command, err)
	}
	limited := false
	if r.MemoryLimit > 0 {
		if err := limitMemory(cmd.Process.Pid, r.MemoryLimit); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return "", fmt.Errorf("limit memory of %s: %w", r.Command, err)
		}
		limited = memoryLimitSupported
	}
	err := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", &RuntimeError{Kind: RuntimeTimeout, PC: -1,
			Message: fmt.Sprintf("execution timed out after %s", timeout)}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if limited && resourceExhausted(exitErr.ProcessState, stderr.Bytes()) {
			return "", &RuntimeError{Kind: RuntimeResourceLimit, PC: -1,
				Message: fmt.Sprintf("memory limit of %d bytes exceeded", r.MemoryLimit), Err: err}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = exitErr.String()
		}
		return FilterOutput(stdout.String(), r.Verbose), &RuntimeError{Kind: RuntimeFault, PC: -1, Message: msg, Err: err}
	}
	if err != nil {
		return "", err
	}
	return FilterOutput(stdout.String(), r.Verbose), nil
}

// FilterOutput keeps the lines a program printed with the PRINT marker and
// strips the marker. Verbose output is returned unchanged.
func FilterOutput(out string, verbose bool) string {
	if verbose {
		return out
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "PRINT"); ok {
			lines = append(lines, strings.TrimSpace(rest))
		}
	}
	return strings.Join(lines, "\n")
}
