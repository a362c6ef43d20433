package sexy

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType is the language tag of the source fence of a test case.
type InputType string

const (
	InputTypeCMinus InputType = "cminus"
)

// AssertionType is the language tag of an assertion fence.
type AssertionType string

const (
	// AssertionTypeTree is an s-expression pattern for the parse tree.
	AssertionTypeTree AssertionType = "tree"
	// AssertionTypeTAC is the exact three-address listing.
	AssertionTypeTAC AssertionType = "tac"
	// AssertionTypeExecute is the filtered program output.
	AssertionTypeExecute AssertionType = "execute"
	// AssertionTypeCompileError is the combined diagnostic report.
	AssertionTypeCompileError AssertionType = "compile-error"
)

type Assertion struct {
	Type       AssertionType
	Content    string
	ParsedSexy *Node // tree assertions only
}

// TestCase is one test extracted from a Markdown document.
type TestCase struct {
	Name       string
	Input      string
	InputType  InputType
	Line       int // of the heading
	Assertions []Assertion
}

// ExtractTestCases reads every "Test: <name>" heading of a Markdown document
// and the fences that follow it, up to the next test heading. Untagged fences
// are prose and ignored; any other tag must be an input or assertion type.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	source := []byte(markdownContent)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	x := &extractor{source: source}
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var err error
		switch n := node.(type) {
		case *ast.Heading:
			err = x.heading(n)
		case *ast.FencedCodeBlock:
			err = x.fence(n)
		}
		if err != nil {
			return ast.WalkStop, err
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}
	if err := x.flush(); err != nil {
		return nil, err
	}
	return x.cases, nil
}

type extractor struct {
	source  []byte
	cases   []TestCase
	current *TestCase
}

func (x *extractor) heading(n *ast.Heading) error {
	name, ok := strings.CutPrefix(plainText(n, x.source), "Test: ")
	if !ok {
		return nil
	}
	if err := x.flush(); err != nil {
		return err
	}
	x.current = &TestCase{Name: name, Line: x.line(n), Assertions: []Assertion{}}
	return nil
}

func (x *extractor) fence(n *ast.FencedCodeBlock) error {
	lang := string(n.Language(x.source))
	line := x.line(n)
	known := isInputFence(lang) || isAssertionFence(lang)

	tc := x.current
	if tc == nil {
		switch {
		case lang == "":
			return nil
		case known:
			return fmt.Errorf("line %d: %s fence found outside of test case", line, lang)
		default:
			return fmt.Errorf("line %d: unknown fence language '%s' found outside of test case", line, lang)
		}
	}
	if lang != "" && !known {
		return fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, tc.Name)
	}

	content := strings.TrimRight(fenceContent(n, x.source), "\n")
	switch {
	case isInputFence(lang):
		if tc.Input != "" {
			return fmt.Errorf("line %d: multiple input fences found in test '%s'", line, tc.Name)
		}
		tc.Input = content
		tc.InputType = InputType(lang)
	case isAssertionFence(lang):
		a := Assertion{Type: AssertionType(lang), Content: content}
		if a.Type == AssertionTypeTree {
			pattern, err := Parse(content)
			if err != nil {
				return fmt.Errorf("line %d: failed to parse Sexy assertion in test '%s': %w", line, tc.Name, err)
			}
			a.ParsedSexy = pattern
		}
		tc.Assertions = append(tc.Assertions, a)
	}
	return nil
}

// flush validates the test case being collected and records it.
func (x *extractor) flush() error {
	tc := x.current
	if tc == nil {
		return nil
	}
	x.current = nil
	if tc.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	x.cases = append(x.cases, *tc)
	return nil
}

// line is the 1-based line of the first text line of n.
func (x *extractor) line(n ast.Node) int {
	if n.Lines().Len() == 0 {
		return 1
	}
	start := min(n.Lines().At(0).Start, len(x.source))
	return bytes.Count(x.source[:start], []byte("\n")) + 1
}

func plainText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(n *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func isInputFence(lang string) bool {
	return lang == string(InputTypeCMinus)
}

func isAssertionFence(lang string) bool {
	switch AssertionType(lang) {
	case AssertionTypeTree, AssertionTypeTAC, AssertionTypeExecute, AssertionTypeCompileError:
		return true
	}
	return false
}
