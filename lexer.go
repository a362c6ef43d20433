package main

import (
	"strconv"
	"unicode/utf8"
)

// Lexer turns source text into tokens on demand. Malformed lexemes are
// recorded in Errors and skipped; the lexer never stops early.
type Lexer struct {
	input  []byte // always ends with a 0 byte
	pos    int
	line   int
	done   bool
	Errors *ErrorCollection
	// Tokens holds every token handed out so far, for the token dump.
	Tokens []Token
}

func NewLexer(src []byte, errs *ErrorCollection) *Lexer {
	input := make([]byte, len(src)+1)
	copy(input, src)
	if errs == nil {
		errs = NewErrorCollection(Lexical)
	}
	return &Lexer{input: input, line: 1, Errors: errs}
}

// Line is the line the lexer is currently positioned on.
func (l *Lexer) Line() int {
	return l.line
}

// NextToken scans the next token. After the end of input it keeps returning
// EOF tokens.
func (l *Lexer) NextToken() Token {
	for {
		tok, ok := l.scan()
		if !ok {
			continue
		}
		if tok.Kind == COMMENT {
			continue
		}
		if tok.Kind != EOF || !l.done {
			l.Tokens = append(l.Tokens, tok)
		}
		if tok.Kind == EOF {
			l.done = true
		}
		return tok
	}
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)-1
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) errorf(line int, lexeme, kind string) {
	l.Errors.Add(line, "("+lexeme+", "+kind+")")
}

// scan reads one lexeme. ok is false when the lexeme was malformed and has
// been skipped.
func (l *Lexer) scan() (tok Token, ok bool) {
	l.skipWhitespace()
	if l.atEnd() {
		return Token{Kind: EOF, Line: l.line}, true
	}

	c := l.input[l.pos]
	line := l.line

	if isLetter(c) {
		lit := l.readIdentifier()
		if keywords[lit] {
			return Token{Kind: KEYWORD, Lexeme: lit, Line: line}, true
		}
		return Token{Kind: ID, Lexeme: lit, Line: line}, true
	}

	if isDigit(c) {
		return l.readNumber()
	}

	switch c {
	case '/':
		if l.peek(1) == '/' {
			l.skipLineComment()
			return Token{Kind: COMMENT, Line: line}, true
		} else if l.peek(1) == '*' {
			return l.skipBlockComment()
		}
		l.pos++
		return Token{Kind: SYMBOL, Lexeme: "/", Line: line}, true

	case '*':
		if l.peek(1) == '/' {
			l.pos += 2
			l.errorf(line, "*/", "Unmatched comment")
			return Token{}, false
		}
		l.pos++
		return Token{Kind: SYMBOL, Lexeme: "*", Line: line}, true

	case '=', '!', '<', '>':
		if l.peek(1) == '=' {
			lit := string(l.input[l.pos : l.pos+2])
			l.pos += 2
			return Token{Kind: SYMBOL, Lexeme: lit, Line: line}, true
		}
		l.pos++
		return Token{Kind: SYMBOL, Lexeme: string(c), Line: line}, true

	case '&', '|':
		if l.peek(1) == c {
			l.pos += 2
			return Token{Kind: SYMBOL, Lexeme: string([]byte{c, c}), Line: line}, true
		}
		l.pos++
		l.errorf(line, string(c), "Invalid input")
		return Token{}, false

	case '+', '-', '%', ';', ',', '(', ')', '[', ']', '{', '}':
		l.pos++
		return Token{Kind: SYMBOL, Lexeme: string(c), Line: line}, true
	}

	// Anything else is outside the alphabet. Consume exactly one character
	// (one UTF-8 sequence) so recovery always makes progress.
	r, size := utf8.DecodeRune(l.input[l.pos : len(l.input)-1])
	lexeme := string(l.input[l.pos : l.pos+size])
	if r == utf8.RuneError && size <= 1 {
		lexeme = strconv.QuoteToASCII(string(l.input[l.pos : l.pos+1]))
		size = 1
	}
	l.pos += size
	l.errorf(line, lexeme, "Invalid input")
	return Token{}, false
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		switch l.input[l.pos] {
		case '\n':
			l.line++
		case ' ', '\t', '\r', '\v', '\f':
		default:
			return
		}
		l.pos++
	}
}

func (l *Lexer) skipLineComment() {
	for !l.atEnd() && l.input[l.pos] != '\n' {
		l.pos++
	}
}

func (l *Lexer) skipBlockComment() (Token, bool) {
	start := l.pos
	line := l.line
	l.pos += 2 // skip /*
	for !l.atEnd() {
		if l.input[l.pos] == '*' && l.peek(1) == '/' {
			l.pos += 2
			return Token{Kind: COMMENT, Line: line}, true
		}
		if l.input[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}

	lexeme := string(l.input[start:l.pos])
	if len(lexeme) > 7 {
		lexeme = lexeme[:7] + "..."
	}
	l.errorf(line, lexeme, "Unclosed comment")
	return Token{}, false
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) {
		l.pos++
	}
	return string(l.input[start:l.pos])
}

func (l *Lexer) readNumber() (Token, bool) {
	start := l.pos
	line := l.line
	for isDigit(l.input[l.pos]) {
		l.pos++
	}

	real := false
	if l.input[l.pos] == '.' {
		l.pos++
		if !isDigit(l.input[l.pos]) {
			l.errorf(line, string(l.input[start:l.pos]), "Invalid number")
			return Token{}, false
		}
		for isDigit(l.input[l.pos]) {
			l.pos++
		}
		real = true
	}

	if isLetter(l.input[l.pos]) {
		for isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) {
			l.pos++
		}
		l.errorf(line, string(l.input[start:l.pos]), "Invalid number")
		return Token{}, false
	}

	lit := string(l.input[start:l.pos])
	tok := Token{Kind: NUM, Lexeme: lit, Line: line, Real: real}
	if real {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			l.errorf(line, lit, "Invalid number")
			return Token{}, false
		}
		tok.Value = int64(f)
		return tok, true
	}
	val, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		l.errorf(line, lit, "Invalid number")
		return Token{}, false
	}
	tok.Value = val
	return tok, true
}
