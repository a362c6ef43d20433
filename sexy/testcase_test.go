package sexy

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

const fence = "```"

func TestExtractTestCases_BasicTest(t *testing.T) {
	markdown := `# Output

## Test: print a constant
` + fence + `cminus
void main(void) { output(7); }
` + fence + `
` + fence + `execute
7
` + fence + `

## Test: print a sum
` + fence + `cminus
void main(void) { output(1 + 2); }
` + fence + `
` + fence + `execute
3
` + fence

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 2)

	tc1 := testCases[0]
	be.Equal(t, tc1.Name, "print a constant")
	be.Equal(t, tc1.Input, "void main(void) { output(7); }")
	be.Equal(t, tc1.InputType, InputTypeCMinus)
	be.Equal(t, tc1.Line, 3)
	be.Equal(t, len(tc1.Assertions), 1)
	be.Equal(t, tc1.Assertions[0].Type, AssertionTypeExecute)
	be.Equal(t, tc1.Assertions[0].Content, "7")
	be.True(t, tc1.Assertions[0].ParsedSexy == nil)

	tc2 := testCases[1]
	be.Equal(t, tc2.Name, "print a sum")
	be.Equal(t, tc2.Assertions[0].Content, "3")
}

func TestExtractTestCases_MultipleAssertions(t *testing.T) {
	markdown := `## Test: several views of one program
` + fence + `cminus
int x;
void main(void) { x = 2; }
` + fence + `
` + fence + `tree
(program (var-declaration "int" "x") ...)
` + fence + `
` + fence + `tac
0	(CALL, 2, #0, )
` + fence + `
` + fence + `execute
` + fence + `
` + fence + `compile-error
Semantic Errors:
#1 : Semantic Error! main function not found.
` + fence

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 1)

	tc := testCases[0]
	be.Equal(t, tc.Input, "int x;\nvoid main(void) { x = 2; }")
	be.Equal(t, len(tc.Assertions), 4)

	be.Equal(t, tc.Assertions[0].Type, AssertionTypeTree)
	be.Equal(t, tc.Assertions[0].ParsedSexy.String(), `(program (var-declaration "int" "x") ...)`)
	be.Equal(t, tc.Assertions[1].Type, AssertionTypeTAC)
	be.Equal(t, tc.Assertions[1].Content, "0\t(CALL, 2, #0, )")
	be.Equal(t, tc.Assertions[2].Type, AssertionTypeExecute)
	be.Equal(t, tc.Assertions[2].Content, "")
	be.Equal(t, tc.Assertions[3].Type, AssertionTypeCompileError)
	be.Equal(t, tc.Assertions[3].Content, "Semantic Errors:\n#1 : Semantic Error! main function not found.")
}

func TestExtractTestCases_EmptyFile(t *testing.T) {
	testCases, err := ExtractTestCases("")
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 0)
}

func TestExtractTestCases_NoTestCases(t *testing.T) {
	markdown := `# Some document

This is just regular markdown content.

## Regular heading

No test cases here.`

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 0)
}

func TestExtractTestCases_InvalidSexyAssertion(t *testing.T) {
	markdown := `## Test: invalid sexy
` + fence + `cminus
void main(void) {}
` + fence + `
` + fence + `tree
(unclosed list
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "failed to parse Sexy assertion"))
	be.True(t, strings.Contains(err.Error(), "line 6"))
}

func TestExtractTestCases_FenceOutsideTestCase(t *testing.T) {
	for _, fenceType := range []string{"cminus", "tree", "tac", "execute", "compile-error"} {
		t.Run(fenceType, func(t *testing.T) {
			markdown := "# Document\n\n" + fence + fenceType + "\nx\n" + fence + "\n"
			_, err := ExtractTestCases(markdown)
			be.True(t, err != nil)
			be.True(t, strings.Contains(err.Error(), fenceType+" fence found outside of test case"))
			be.True(t, strings.Contains(err.Error(), "line 4"))
		})
	}
}

func TestExtractTestCases_UnknownFenceOutsideTest(t *testing.T) {
	markdown := `# Document with unknown code block

` + fence + `go
func main() {}
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "unknown fence language 'go' found outside of test case"))
}

func TestExtractTestCases_UnknownFenceInTest(t *testing.T) {
	markdown := `## Test: with unknown fence
` + fence + `cminus
void main(void) {}
` + fence + `
` + fence + `execute
` + fence + `

` + fence + `shell
echo "more code"
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "unknown fence language 'shell' in test 'with unknown fence'"))
}

func TestExtractTestCases_TestMissingInputFence(t *testing.T) {
	markdown := `## Test: no input
` + fence + `execute
1
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "test 'no input' has no input fence"))
}

func TestExtractTestCases_TestMissingAssertionFence(t *testing.T) {
	markdown := `## Test: no assertions
` + fence + `cminus
void main(void) {}
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "test 'no assertions' has no assertion fences"))
}

func TestExtractTestCases_MultipleInputFences(t *testing.T) {
	markdown := `## Test: multiple inputs
` + fence + `cminus
void main(void) {}
` + fence + `
` + fence + `cminus
void main(void) { output(1); }
` + fence + `
` + fence + `execute
1
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "multiple input fences found in test 'multiple inputs'"))
}

func TestExtractTestCases_AllowFencesWithoutLanguage(t *testing.T) {
	markdown := `# Document with generic code block

` + fence + `
some text without language
` + fence + `

## Test: valid test
` + fence + `cminus
void main(void) {}
` + fence + `
` + fence + `execute
` + fence + `

` + fence + `
more text without language in test
` + fence

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 1)
	be.Equal(t, testCases[0].Name, "valid test")
	be.Equal(t, len(testCases[0].Assertions), 1)
}

func TestExtractTestCases_ErrorInSecondTest(t *testing.T) {
	markdown := `## Test: first test
` + fence + `cminus
void main(void) {}
` + fence + `
` + fence + `execute
` + fence + `

## Test: second test missing input
` + fence + `execute
1
` + fence

	_, err := ExtractTestCases(markdown)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "test 'second test missing input' has no input fence"))
}

func TestExtractTestCases_MultiLineTree(t *testing.T) {
	markdown := `## Test: nested tree
` + fence + `cminus
void main(void) { output(1 + 2 * 3); }
` + fence + `
` + fence + `tree
; only the call matters
(program
 (fun-declaration "void" "main" (params "void")
  (compound-stmt
   (expression-stmt
    (call "output" (args (binary 1 "+" (binary 2 "*" 3))))))))
` + fence

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 1)

	tree := testCases[0].Assertions[0].ParsedSexy
	be.Equal(t, tree.Type, NodeList)
	be.Equal(t, len(tree.Items), 2)
	be.Equal(t, tree.Items[0].Text, "program")
	fn := tree.Items[1]
	be.Equal(t, fn.Items[1].Type, NodeString)
	be.Equal(t, fn.Items[2].Text, "main")
}
