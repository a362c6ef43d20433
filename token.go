package main

// TokenKind is the class of a token.
type TokenKind string

const (
	KEYWORD TokenKind = "KEYWORD"
	ID      TokenKind = "ID"
	NUM     TokenKind = "NUM"
	SYMBOL  TokenKind = "SYMBOL"
	COMMENT TokenKind = "COMMENT"
	EOF     TokenKind = "EOF"
)

// Token is one classified lexeme. Tokens are never modified after the lexer
// hands them out.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	// NUM only:
	Value int64
	Real  bool
}

// Is reports whether the token is the keyword or symbol lit.
func (t Token) Is(lit string) bool {
	return (t.Kind == KEYWORD || t.Kind == SYMBOL) && t.Lexeme == lit
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return "(" + string(t.Kind) + ", " + t.Lexeme + ")"
}

var keywords = map[string]bool{
	"int":      true,
	"void":     true,
	"if":       true,
	"else":     true,
	"while":    true,
	"break":    true,
	"continue": true,
	"return":   true,
}
