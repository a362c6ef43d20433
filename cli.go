package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Options are the command-line settings shared by all commands.
type Options struct {
	Run         bool
	Verbose     bool
	ErrorFiles  bool
	Tree        bool
	SymbolTable bool
	Tokens      bool
	OutDir      string
	Timeout     time.Duration
	Memory      uint64
	Tester      string
}

func (o *Options) artifacts() Artifacts {
	return Artifacts{
		Tokens:      o.Tokens,
		SymbolTable: o.SymbolTable,
		Tree:        o.Tree,
		ErrorFiles:  o.ErrorFiles,
		Detail:      o.Verbose,
	}
}

// errFailed is returned once the failure has already been reported.
var errFailed = errors.New("failed")

type cli struct {
	opts   Options
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "cminus",
		Short: "cminus - a single-pass compiler for C-minus",
		Long: `cminus compiles C-minus programs to three-address code and AArch64 assembly.

Commands:
  build  Compile a source file and write the build artifacts
  run    Compile a source file and execute it
  eval   Compile and execute inline C-minus code
  check  Report the diagnostics of one or more source files
  exec   Execute a saved three-address listing
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			w := io.Discard
			if c.opts.Verbose {
				w = c.stderr
			}
			c.log = log.New(w, "cminus: ", 0)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.opts.Verbose, "verbose", "v", false, "print every executed three-address instruction")
	flags.StringVarP(&c.opts.OutDir, "out", "o", "output", "output directory for build artifacts")
	flags.DurationVar(&c.opts.Timeout, "timeout", DefaultTimeout, "execution time limit")
	flags.Uint64Var(&c.opts.Memory, "memory", DefaultMemoryLimit, "address-space limit of the tester in bytes")
	flags.StringVar(&c.opts.Tester, "tester", "", "external tester run on the listing instead of the built-in interpreter")

	build := &cobra.Command{
		Use:   "build <source>",
		Short: "Compile a source file and write the build artifacts",
		Args:  cobra.ExactArgs(1),
		RunE:  c.buildRun,
	}
	bf := build.Flags()
	bf.BoolVarP(&c.opts.Run, "run", "r", false, "run the program after compilation")
	bf.BoolVarP(&c.opts.ErrorFiles, "error-files", "e", false, "save diagnostics to text files")
	bf.BoolVarP(&c.opts.Tree, "tree", "a", false, "save the parse tree")
	bf.BoolVarP(&c.opts.SymbolTable, "symbol-table", "s", false, "save the symbol table")
	bf.BoolVarP(&c.opts.Tokens, "tokens", "t", false, "save the token list")

	run := &cobra.Command{
		Use:   "run <source>",
		Short: "Compile a source file and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.opts.Run = true
			return c.buildRun(cmd, args)
		},
	}
	eval := &cobra.Command{
		Use:   "eval <code>",
		Short: "Compile and execute inline C-minus code",
		Args:  cobra.ExactArgs(1),
		RunE:  c.evalRun,
	}
	check := &cobra.Command{
		Use:   "check <source>...",
		Short: "Report the diagnostics of one or more source files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.checkRun,
	}
	exec := &cobra.Command{
		Use:   "exec <listing>",
		Short: "Execute a saved three-address listing",
		Args:  cobra.ExactArgs(1),
		RunE:  c.execRun,
	}

	root.AddCommand(build, run, eval, check, exec)
	return root
}

func (c *cli) compile(name string, source []byte) (*Result, error) {
	fmt.Fprintf(c.stdout, "Compiling %s\n", name)
	start := time.Now()
	result, err := Compile(source)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.stdout, "Compilation took %.6f s\n", time.Since(start).Seconds())
	if !result.OK() {
		fmt.Fprintf(c.stdout, "Compilation failed due to the following errors:\n\n%s\n", result.Report())
		return result, nil
	}
	fmt.Fprintln(c.stdout, "Compilation successful!")
	return result, nil
}

func (c *cli) buildRun(cmd *cobra.Command, args []string) error {
	src := args[0]
	source, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	result, err := c.compile(src, source)
	if err != nil {
		return err
	}
	if err := WriteArtifacts(c.opts.OutDir, result, c.opts.artifacts()); err != nil {
		return err
	}
	c.log.Printf("wrote artifacts to %s", c.opts.OutDir)
	if !result.OK() {
		return errFailed
	}
	if !c.opts.Run {
		return nil
	}
	return c.execute(cmd.Context(), result.Program)
}

func (c *cli) evalRun(cmd *cobra.Command, args []string) error {
	result, err := c.compile("<eval>", []byte(args[0]))
	if err != nil {
		return err
	}
	if !result.OK() {
		return errFailed
	}
	return c.execute(cmd.Context(), result.Program)
}

// checkRun compiles every file concurrently; each compilation has its own
// context. Reports are printed in argument order.
func (c *cli) checkRun(cmd *cobra.Command, args []string) error {
	results := make([]*Result, len(args))
	g, _ := errgroup.WithContext(cmd.Context())
	for i, name := range args {
		g.Go(func() error {
			source, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			result, err := Compile(source)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := false
	for i, name := range args {
		if results[i].OK() {
			fmt.Fprintf(c.stdout, "%s: no errors found\n", name)
			continue
		}
		failed = true
		fmt.Fprintf(c.stdout, "%s:\n%s\n", name, results[i].Report())
	}
	if failed {
		return errFailed
	}
	return nil
}

func (c *cli) execRun(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	prog, err := ParseTAC(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return c.execute(cmd.Context(), prog)
}

// execute runs prog in the interpreter, or in the external tester when one is
// configured, and prints the filtered output.
func (c *cli) execute(ctx context.Context, prog *Program) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(c.stdout, "Executing compiled program")
	start := time.Now()
	var output string
	var err error
	if c.opts.Tester != "" {
		output, err = c.runTester(ctx, prog)
	} else {
		output, err = c.interpret(ctx, prog)
	}
	var rt *RuntimeError
	if errors.As(err, &rt) {
		fmt.Fprintf(c.stdout, "RuntimeError: %s\n", rt.Error())
		return errFailed
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Execution took %.6f s\n", time.Since(start).Seconds())
	fmt.Fprintln(c.stdout, "Program output:")
	fmt.Fprintln(c.stdout, output)
	return nil
}

func (c *cli) interpret(ctx context.Context, prog *Program) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	var out bytes.Buffer
	opts := InterpOptions{Out: &out}
	if c.opts.Verbose {
		opts.Trace = c.stderr
	}
	err := Interpret(ctx, prog, opts)
	return FilterOutput(out.String(), c.opts.Verbose), err
}

func (c *cli) runTester(ctx context.Context, prog *Program) (string, error) {
	dir := c.opts.OutDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	listing := filepath.Join(dir, OutputFile)
	if err := os.WriteFile(listing, []byte(prog.String()), 0o644); err != nil {
		return "", err
	}
	r := NewRunner(c.opts.Tester)
	r.Dir = dir
	r.Timeout = c.opts.Timeout
	r.MemoryLimit = c.opts.Memory
	r.Verbose = c.opts.Verbose
	r.Stderr = c.stderr
	c.log.Printf("running %s in %s", c.opts.Tester, dir)
	return r.Run(ctx)
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
