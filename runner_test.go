package main

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

func TestFilterOutput(t *testing.T) {
	raw := "starting\nPRINT 3\nPRINT -7\ntrace line\nPRINT\t12\n"
	be.Equal(t, FilterOutput(raw, false), "3\n-7\n12")
	be.Equal(t, FilterOutput(raw, true), raw)
	be.Equal(t, FilterOutput("", false), "")
}

func shellRunner(t *testing.T, script string) *Runner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewRunner("sh", "-c", script)
}

func TestRunnerOutput(t *testing.T) {
	r := shellRunner(t, "echo noise; echo PRINT 3; echo PRINT 4")
	out, err := r.Run(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, out, "3\n4")
}

func TestRunnerRunsInDir(t *testing.T) {
	dir := t.TempDir()
	r := shellRunner(t, `test "$(pwd -P)" = "$(cd "$1" && pwd -P)" && echo PRINT 1`)
	r.Args = append(r.Args, "sh", dir)
	r.Dir = dir
	out, err := r.Run(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, out, "1")
}

func TestRunnerTimeout(t *testing.T) {
	r := shellRunner(t, "exec sleep 5")
	r.Timeout = 100 * time.Millisecond
	start := time.Now()
	_, err := r.Run(context.Background())

	var rt *RuntimeError
	be.True(t, errors.As(err, &rt))
	be.Equal(t, rt.Kind, RuntimeTimeout)
	be.True(t, time.Since(start) < 4*time.Second)
}

func TestRunnerFault(t *testing.T) {
	r := shellRunner(t, "echo PRINT 1; echo boom >&2; exit 3")
	out, err := r.Run(context.Background())

	var rt *RuntimeError
	be.True(t, errors.As(err, &rt))
	be.Equal(t, rt.Kind, RuntimeFault)
	be.Equal(t, rt.Message, "boom")
	be.Equal(t, out, "1")

	var exitErr *exec.ExitError
	be.True(t, errors.As(err, &exitErr))
}

func TestRunnerMissingCommand(t *testing.T) {
	r := NewRunner("cminus-no-such-tester")
	_, err := r.Run(context.Background())
	be.True(t, err != nil)
	var rt *RuntimeError
	be.True(t, !errors.As(err, &rt))
}
