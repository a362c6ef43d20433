package main

import "fmt"

// Result is everything one compilation produced. Program and the debug
// artifacts are always present; Assembly is set only when there were no
// diagnostics.
type Result struct {
	Tokens      []Token
	Tree        *TreeNode
	Symbols     []*Symbol
	Program     *Program
	Diagnostics *Diagnostics
	Assembly    string
}

// OK reports whether the program compiled without diagnostics.
func (r *Result) OK() bool {
	return !r.Diagnostics.HasErrors()
}

// Report is the combined diagnostic report, or "" on success.
func (r *Result) Report() string {
	return r.Diagnostics.Report()
}

// Compile runs the single translation pass over source and, if it produced
// no diagnostics, lowers the program to assembly. Diagnostics are part of the
// result; the error is reserved for internal faults.
func Compile(source []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	ctx := NewContext(source)
	parsed := NewParser(ctx).Parse()
	if d := ctx.Scopes.Depth(); d != 0 {
		return nil, fmt.Errorf("%w: %d scopes left open", ErrInternal, d)
	}
	result = &Result{
		Tokens:      ctx.Lexer.Tokens,
		Tree:        parsed.Tree,
		Symbols:     ctx.Scopes.Symbols(),
		Program:     parsed.Program,
		Diagnostics: ctx.Diagnostics,
	}
	if !result.OK() {
		return result, nil
	}
	asm, err := Lower(result.Program)
	if err != nil {
		return nil, err
	}
	result.Assembly = asm
	return result, nil
}
