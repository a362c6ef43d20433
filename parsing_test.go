// Parser and translator tests
//
// Tests the recursive-descent parser: the parse tree it builds, panic-mode
// recovery, and the instructions the translator emits while parsing.

package main

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func parseSource(t *testing.T, src string) (*Context, *ParseResult) {
	t.Helper()
	ctx := NewContext([]byte(src))
	result := NewParser(ctx).Parse()
	be.Equal(t, ctx.Scopes.Depth(), 0)
	return ctx, result
}

func syntaxMessages(ctx *Context) []string {
	var out []string
	for _, d := range ctx.Diagnostics.Syntax.Items() {
		out = append(out, d.String())
	}
	return out
}

// =============================================================================
// PARSE TREE TESTS
// =============================================================================

func TestParseTreeShape(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "global variable",
			src:  "int x; void main(void) {}",
			want: `(program (var-declaration "int" "x") (fun-declaration "void" "main" (params "void") (compound-stmt)))`,
		},
		{
			name: "global array",
			src:  "int a[10]; void main(void) {}",
			want: `(program (var-declaration "int" "a" 10) (fun-declaration "void" "main" (params "void") (compound-stmt)))`,
		},
		{
			name: "parameters",
			src:  "int f(int a, int b[]) { return a; } void main(void) {}",
			want: `(program (fun-declaration "int" "f" (params (param "int" "a") (param "int" "b" "[]")) (compound-stmt (return-stmt "a"))) (fun-declaration "void" "main" (params "void") (compound-stmt)))`,
		},
		{
			name: "statements",
			src:  "void main(void) { int i; while (i) { if (i) break; else continue; } return; }",
			want: `(program (fun-declaration "void" "main" (params "void") (compound-stmt (var-declaration "int" "i") (iteration-stmt "i" (compound-stmt (selection-stmt "i" (break-stmt) (continue-stmt)))) (return-stmt))))`,
		},
		{
			name: "expressions",
			src:  "void main(void) { int a[2]; a[0] = -a[1] * 2 < 3 || !0; }",
			want: `(program (fun-declaration "void" "main" (params "void") (compound-stmt (var-declaration "int" "a" 2) (expression-stmt (assign (index "a" 0) (binary (binary (binary (unary "-" (index "a" 1)) "*" 2) "<" 3) "||" (unary "!" 0)))))))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, result := parseSource(t, tt.src)
			be.True(t, !ctx.Diagnostics.HasErrors())
			be.Equal(t, ToSExpr(result.Tree), tt.want)
			be.True(t, result.Parsed.Recovery == nil)
		})
	}
}

func TestRenderTree(t *testing.T) {
	_, result := parseSource(t, "int x; void main(void) {}")
	want := strings.Join([]string{
		"program",
		"├── var-declaration",
		"│   ├── (KEYWORD, int)",
		"│   └── (ID, x)",
		"└── fun-declaration",
		"    ├── (KEYWORD, void)",
		"    ├── (ID, main)",
		"    ├── params",
		"    │   └── (KEYWORD, void)",
		"    └── compound-stmt",
		"",
	}, "\n")
	be.Equal(t, RenderTree(result.Tree), want)
}

// =============================================================================
// RECOVERY TESTS
// =============================================================================

func TestSyntaxRecovery(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "missing semicolon",
			src:  "void main(void) {\n int x;\n x = 1\n}",
			want: []string{"#3 : syntax error, missing ;"},
		},
		{
			name: "missing closing paren",
			src:  "void main(void) {\n output(1;\n}",
			want: []string{"#2 : syntax error, missing )"},
		},
		{
			name: "illegal token in expression statement",
			src:  "void main(void) {\n int x;\n x = 1 2;\n}",
			want: []string{"#3 : syntax error, illegal 2"},
		},
		{
			name: "missing array size",
			src:  "int a[];\nvoid main(void) {}",
			want: []string{"#1 : syntax error, missing NUM"},
		},
		{
			name: "junk between declarations",
			src:  "int x;\nfoo bar;\nvoid main(void) {}",
			want: []string{"#2 : syntax error, illegal foo"},
		},
		{
			name: "missing parameter type",
			src:  "int f(int a, ) { return a; }\nvoid main(void) {}",
			want: []string{"#1 : syntax error, missing int"},
		},
		{
			name: "missing void",
			src:  "void main() {}",
			want: []string{"#1 : syntax error, missing void"},
		},
		{
			name: "missing while paren",
			src:  "void main(void) {\n while 1) ;\n}",
			want: []string{"#2 : syntax error, illegal 1", "#2 : syntax error, missing expression"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, result := parseSource(t, tt.src)
			be.Equal(t, syntaxMessages(ctx), tt.want)
			be.True(t, result.Parsed.Recovery != nil)
			be.Equal(t, result.Parsed.Recovery.Diagnostic.String(), tt.want[0])
		})
	}
}

func TestUnexpectedEOFReportedOnce(t *testing.T) {
	ctx, result := parseSource(t, "void main(void) {\n if (1 {\n while (")
	msgs := syntaxMessages(ctx)
	be.True(t, len(msgs) >= 1)
	be.Equal(t, msgs[len(msgs)-1], "#3 : syntax error, Unexpected EOF")
	count := 0
	for _, m := range msgs {
		if strings.Contains(m, "Unexpected EOF") {
			count++
		}
	}
	be.Equal(t, count, 1)
	be.True(t, result.Program != nil)
}

func TestParseEmptyInput(t *testing.T) {
	ctx, _ := parseSource(t, "")
	be.Equal(t, syntaxMessages(ctx), []string{"#1 : syntax error, Unexpected EOF"})
	be.Equal(t, ctx.Diagnostics.Semantic.String(), "#1 : Semantic Error! main function not found.")
}

func TestParserAlwaysTerminates(t *testing.T) {
	inputs := []string{
		"}}}}",
		"void main(void) { ))) }",
		"int int int",
		"void main(void) { if else while }",
		"void main(void) { x = = = ; }",
		"void f(void [ ] ) { }",
		"int a[5 void main(void) {}",
		"void main(void) { output(1,,2); }",
		"void main(void) { { { {",
	}
	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			ctx, result := parseSource(t, src)
			be.True(t, ctx.Diagnostics.Syntax.HasErrors())
			be.True(t, result.Tree != nil)
		})
	}
}

// =============================================================================
// TRANSLATION TESTS
// =============================================================================

func listing(prog *Program) []string {
	var out []string
	for _, ins := range prog.Code {
		out = append(out, ins.String())
	}
	return out
}

func TestEmitIfElse(t *testing.T) {
	_, result := parseSource(t, "void main(void) { if (1) output(1); else output(2); }")
	be.Equal(t, listing(result.Program), []string{
		"(CALL, 2, #0, )",
		"(JP, 8, , )",
		"(FUNC, #4, #0, )",
		"(JPF, #1, 6, )",
		"(PRINT, #1, , )",
		"(JP, 7, , )",
		"(PRINT, #2, , )",
		"(RETURN, , , )",
	})
}

func TestEmitBreakBackpatch(t *testing.T) {
	_, result := parseSource(t, "void main(void) { while (1) { break; continue; } }")
	be.Equal(t, listing(result.Program), []string{
		"(CALL, 2, #0, )",
		"(JP, 8, , )",
		"(FUNC, #4, #0, )",
		"(JPF, #1, 7, )",
		"(JP, 7, , )",
		"(JP, 3, , )",
		"(JP, 3, , )",
		"(RETURN, , , )",
	})
}

func TestEmitShortCircuitOr(t *testing.T) {
	_, result := parseSource(t, "int x; void main(void) { x = x || 1; }")
	be.Equal(t, listing(result.Program), []string{
		"(CALL, 2, #0, )",
		"(JP, 9, , )",
		"(FUNC, #12, #0, )",
		"(ASSIGN, #1, fp+4, )",
		"(EQ, 500, #0, fp+8)",
		"(JPF, fp+8, 7, )",
		"(NE, #1, #0, fp+4)",
		"(ASSIGN, fp+4, 500, )",
		"(RETURN, , , )",
	})
}

func TestFrameLayout(t *testing.T) {
	_, result := parseSource(t, "int f(int a, int b[]) { int c; int d[3]; return a; } void main(void) {}")
	fn := result.Program.Functions[0]
	be.Equal(t, fn.Name, "f")
	be.Equal(t, fn.Frame.Params, 2)
	be.Equal(t, fn.Frame.ReturnOffset(), 8)

	var kinds []string
	offset := 0
	for _, s := range fn.Frame.Slots {
		be.Equal(t, s.Offset, offset)
		offset += s.Size
		kinds = append(kinds, s.Name+":"+s.Kind.String())
	}
	be.Equal(t, kinds, []string{"a:param", "b:param", "return:return", "c:local", "d:local"})
	be.Equal(t, fn.Frame.Size, 28)
	be.Equal(t, result.Program.Code[fn.Entry].String(), "(FUNC, #28, #2, )")
}

func TestGlobalsAllocatedFromDataBase(t *testing.T) {
	ctx, result := parseSource(t, "int x; int a[3]; int y; void main(void) {}")
	var locs []string
	for _, sym := range ctx.Scopes.Symbols() {
		if sym.Allocated {
			locs = append(locs, sym.Name+"="+sym.Loc.String())
		}
	}
	be.Equal(t, locs, []string{"x=500", "a=504", "y=516"})
	be.Equal(t, result.Program.GlobalSize, 20)
}

func TestStartupCallUnpatchedWithoutMain(t *testing.T) {
	ctx, result := parseSource(t, "int f(void) { return 1; }")
	be.True(t, ctx.Diagnostics.Semantic.HasErrors())
	// The startup call is never patched without a main.
	be.Equal(t, result.Program.Code[0].String(), "(CALL, -1, #0, )")
}
