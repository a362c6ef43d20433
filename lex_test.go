package main

import (
	"testing"

	"github.com/nalgeon/be"
)

// lexAll scans input to the end and returns the tokens, without the final
// EOF, and the lexical errors.
func lexAll(input string) ([]Token, *ErrorCollection) {
	l := NewLexer([]byte(input), nil)
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Kind == EOF {
			return toks, l.Errors
		}
		toks = append(toks, tok)
	}
}

func TestNumberLiteral(t *testing.T) {
	toks, errs := lexAll("12345")
	be.Equal(t, errs.Len(), 0)
	be.Equal(t, len(toks), 1)
	be.Equal(t, toks[0].Kind, NUM)
	be.Equal(t, toks[0].Lexeme, "12345")
	be.Equal(t, toks[0].Value, int64(12345))
	be.Equal(t, toks[0].Real, false)
}

func TestRealLiteral(t *testing.T) {
	toks, errs := lexAll("3.75")
	be.Equal(t, errs.Len(), 0)
	be.Equal(t, toks[0].Kind, NUM)
	be.Equal(t, toks[0].Real, true)
	be.Equal(t, toks[0].Value, int64(3))
}

func TestIdentifier(t *testing.T) {
	toks, _ := lexAll("foo_bar9")
	be.Equal(t, toks[0].Kind, ID)
	be.Equal(t, toks[0].Lexeme, "foo_bar9")
}

func TestKeywords(t *testing.T) {
	for _, kw := range []string{"int", "void", "if", "else", "while", "break", "continue", "return"} {
		toks, _ := lexAll(kw)
		be.Equal(t, toks[0].Kind, KEYWORD)
		be.Equal(t, toks[0].Lexeme, kw)
		be.True(t, toks[0].Is(kw))
	}
	toks, _ := lexAll("output")
	be.Equal(t, toks[0].Kind, ID)
}

func TestSymbols(t *testing.T) {
	input := "+ - * / % < <= > >= == != = ! && || ; , ( ) [ ] { }"
	want := []string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!=", "=", "!", "&&", "||",
		";", ",", "(", ")", "[", "]", "{", "}"}

	toks, errs := lexAll(input)
	be.Equal(t, errs.Len(), 0)
	be.Equal(t, len(toks), len(want))
	for i, tok := range toks {
		be.Equal(t, tok.Kind, SYMBOL)
		be.Equal(t, tok.Lexeme, want[i])
	}
}

func TestLongestMatch(t *testing.T) {
	toks, _ := lexAll("a<=b==c")
	var lexemes []string
	for _, tok := range toks {
		lexemes = append(lexemes, tok.Lexeme)
	}
	be.Equal(t, lexemes, []string{"a", "<=", "b", "==", "c"})
}

func TestLineNumbers(t *testing.T) {
	toks, _ := lexAll("int\n\nx /* one\ntwo */ ;\n// note\n}")
	be.Equal(t, len(toks), 4)
	be.Equal(t, toks[0].Line, 1)
	be.Equal(t, toks[1].Line, 3)
	be.Equal(t, toks[2].Line, 4)
	be.Equal(t, toks[3].Line, 6)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks, errs := lexAll("/* block */ x // line\ny")
	be.Equal(t, errs.Len(), 0)
	be.Equal(t, len(toks), 2)
	be.Equal(t, toks[0].Lexeme, "x")
	be.Equal(t, toks[1].Lexeme, "y")
}

func TestLexicalErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"$", "($, Invalid input)"},
		{"a & b", "(&, Invalid input)"},
		{"a | b", "(|, Invalid input)"},
		{"12ab", "(12ab, Invalid number)"},
		{"12.", "(12., Invalid number)"},
		{"*/", "(*/, Unmatched comment)"},
		{"/* never closed", "(/* neve..., Unclosed comment)"},
		{"/* ab", "(/* ab, Unclosed comment)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, errs := lexAll(tt.input)
			be.Equal(t, errs.Len(), 1)
			be.Equal(t, errs.Items()[0].Message, tt.message)
			be.Equal(t, errs.Items()[0].Line, 1)
		})
	}
}

func TestLexerRecoversAfterError(t *testing.T) {
	toks, errs := lexAll("x $ y @ 12ab z")
	be.Equal(t, errs.Len(), 3)
	be.Equal(t, len(toks), 3)
	be.Equal(t, toks[0].Lexeme, "x")
	be.Equal(t, toks[1].Lexeme, "y")
	be.Equal(t, toks[2].Lexeme, "z")
}

func TestNonASCIIInputConsumesOneRune(t *testing.T) {
	toks, errs := lexAll("a é b")
	be.Equal(t, errs.Len(), 1)
	be.Equal(t, errs.Items()[0].Message, "(é, Invalid input)")
	be.Equal(t, len(toks), 2)
}

func TestUnclosedCommentLine(t *testing.T) {
	_, errs := lexAll("x\n/* open\nstill\n")
	be.Equal(t, errs.Len(), 1)
	be.Equal(t, errs.Items()[0].Line, 2)
}

func TestEOFRepeats(t *testing.T) {
	l := NewLexer([]byte("x"), nil)
	be.Equal(t, l.NextToken().Kind, ID)
	be.Equal(t, l.NextToken().Kind, EOF)
	be.Equal(t, l.NextToken().Kind, EOF)
	// Only one EOF is kept for the token dump.
	be.Equal(t, len(l.Tokens), 2)
}

func TestEmptyInput(t *testing.T) {
	toks, errs := lexAll("")
	be.Equal(t, len(toks), 0)
	be.Equal(t, errs.Len(), 0)
}

func TestTokenString(t *testing.T) {
	be.Equal(t, Token{Kind: KEYWORD, Lexeme: "void"}.String(), "(KEYWORD, void)")
	be.Equal(t, Token{Kind: SYMBOL, Lexeme: "("}.String(), "(SYMBOL, ()")
	be.Equal(t, Token{Kind: EOF}.String(), "EOF")
}

func TestLexicalErrorsShareLine(t *testing.T) {
	_, errs := lexAll("$ ?\n@")
	be.Equal(t, errs.String(), "1.\t($, Invalid input) (?, Invalid input)\n2.\t(@, Invalid input)")
}

func TestLexicalSentinel(t *testing.T) {
	_, errs := lexAll("int x;")
	be.Equal(t, errs.String(), NoLexicalErrors)
}
