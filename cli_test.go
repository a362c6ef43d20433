package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	be.Err(t, os.WriteFile(path, []byte(src), 0o644), nil)
	return path
}

func TestCLIBuild(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "input.txt", "void main(void) { output(5); }")
	out := filepath.Join(dir, "out")

	stdout, _, err := runCLI(t, "build", "-e", "-t", "-s", "-a", "--out", out, src)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Compiling "+src))
	be.True(t, strings.Contains(stdout, "Compilation successful!"))
	be.True(t, !strings.Contains(stdout, "Executing"))

	for _, name := range []string{
		OutputFile, AssemblyFile, TokensFile, SymbolTableFile, ParseTreeFile,
		LexicalErrorsFile, SyntaxErrorsFile, SemanticErrorsFile,
	} {
		_, err := os.Stat(filepath.Join(out, name))
		be.Err(t, err, nil)
	}
}

func TestCLIBuildAndRun(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "input.txt", "void main(void) { output(5); output(6); }")

	stdout, _, err := runCLI(t, "build", "--run", "--out", dir, src)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Executing compiled program"))
	be.True(t, strings.Contains(stdout, "Program output:\n5\n6\n"))
}

func TestCLIRunFailedCompilation(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "input.txt", "void main(void) { output(x); }")

	stdout, _, err := runCLI(t, "run", "--out", dir, src)
	be.True(t, errors.Is(err, errFailed))
	be.True(t, strings.Contains(stdout, "Compilation failed due to the following errors:\n\n"))
	be.True(t, strings.Contains(stdout, "'x' is not defined."))
	be.True(t, !strings.Contains(stdout, "Executing"))

	asm, err := os.ReadFile(filepath.Join(dir, AssemblyFile))
	be.Err(t, err, nil)
	be.True(t, strings.HasPrefix(string(asm), "Semantic Errors:\n"))
}

func TestCLIMissingSource(t *testing.T) {
	_, _, err := runCLI(t, "build", filepath.Join(t.TempDir(), "nope.txt"))
	be.True(t, err != nil)
	be.True(t, !errors.Is(err, errFailed))
}

func TestCLIEval(t *testing.T) {
	stdout, _, err := runCLI(t, "eval", "void main(void) { output(7 * 6); }")
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Compiling <eval>"))
	be.True(t, strings.Contains(stdout, "Program output:\n42\n"))
}

func TestCLIEvalVerbose(t *testing.T) {
	stdout, stderr, err := runCLI(t, "eval", "--verbose", "void main(void) { output(1); }")
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Program output:\nPRINT 1\n"))
	be.True(t, strings.Contains(stderr, "(PRINT, #1, , )"))
}

func TestCLIEvalRuntimeError(t *testing.T) {
	stdout, _, err := runCLI(t, "eval", "void main(void) { int z; z = 0; output(1 / z); }")
	be.True(t, errors.Is(err, errFailed))
	be.True(t, strings.Contains(stdout, "RuntimeError: runtime error at "))
	be.True(t, strings.Contains(stdout, "division by zero"))
}

func TestCLIEvalTimeout(t *testing.T) {
	stdout, _, err := runCLI(t, "eval", "--timeout", "50ms", "void main(void) { while (1) ; }")
	be.True(t, errors.Is(err, errFailed))
	be.True(t, strings.Contains(stdout, "RuntimeError: runtime error"))
}

func TestCLICheck(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.txt", "void main(void) { output(1); }")
	bad := writeSource(t, dir, "bad.txt", "void main(void) { output(1) }")

	stdout, _, err := runCLI(t, "check", good, bad)
	be.True(t, errors.Is(err, errFailed))
	be.True(t, strings.Contains(stdout, good+": no errors found\n"))
	be.True(t, strings.Contains(stdout, bad+":\nSyntax Errors:\n#1 : syntax error, missing ;"))
	be.True(t, strings.Index(stdout, good) < strings.Index(stdout, bad))

	stdout, _, err = runCLI(t, "check", good)
	be.Err(t, err, nil)
	be.Equal(t, stdout, good+": no errors found\n")
}

func TestCLIExec(t *testing.T) {
	result := mustCompile(t, "void main(void) { output(9); }")
	path := writeSource(t, t.TempDir(), OutputFile, result.Program.String())

	stdout, _, err := runCLI(t, "exec", path)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Program output:\n9\n"))
}

func TestCLIExecBadListing(t *testing.T) {
	path := writeSource(t, t.TempDir(), OutputFile, "0\t(NOP, , , )\n")
	_, _, err := runCLI(t, "exec", path)
	var syn *TACSyntaxError
	be.True(t, errors.As(err, &syn))
}

func TestCLITester(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	tester := filepath.Join(dir, "tester.sh")
	script := "#!/bin/sh\necho PRINT $(grep -c PRINT " + OutputFile + ")\n"
	be.Err(t, os.WriteFile(tester, []byte(script), 0o755), nil)
	out := filepath.Join(dir, "out")

	stdout, _, err := runCLI(t, "eval", "--tester", tester, "--out", out, "void main(void) { output(1); output(2); }")
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Program output:\n2\n"))

	listing, err := os.ReadFile(filepath.Join(out, OutputFile))
	be.Err(t, err, nil)
	be.True(t, strings.Contains(string(listing), "(PRINT, #2, , )"))
}

func TestCLIExecFaultingListing(t *testing.T) {
	path := writeSource(t, t.TempDir(), OutputFile, "0\t(ASSIGN, #1, #2, )\n")
	stdout, _, err := runCLI(t, "exec", path)
	be.True(t, errors.Is(err, errFailed))
	be.True(t, strings.Contains(stdout, `RuntimeError: runtime error at 0: operand "#2" has no address`))
}
