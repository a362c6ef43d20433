package sexy

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// NodeType is the kind of a Node.
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeInteger
	NodeEllipsis
	NodeList
)

func (t NodeType) String() string {
	switch t {
	case NodeSymbol:
		return "symbol"
	case NodeString:
		return "string"
	case NodeInteger:
		return "integer"
	case NodeEllipsis:
		return "ellipsis"
	case NodeList:
		return "list"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// Node is one datum of an s-expression: an atom or a list.
type Node struct {
	Type  NodeType
	Text  string  // NodeSymbol, NodeString, NodeInteger
	Items []*Node // NodeList
}

func (n *Node) String() string {
	switch n.Type {
	case NodeSymbol, NodeInteger:
		return n.Text
	case NodeString:
		escaped := strings.ReplaceAll(n.Text, "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		return "\"" + escaped + "\""
	case NodeEllipsis:
		return "..."
	case NodeList:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("UNKNOWN_NODE_TYPE_%d", n.Type)
	}
}

func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewInteger(text string) *Node {
	return &Node{Type: NodeInteger, Text: text}
}

func NewEllipsis() *Node {
	return &Node{Type: NodeEllipsis}
}

func NewList(items []*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

func (n *Node) IsAtom() bool {
	return n.Type != NodeList
}

// Match reports whether actual has the shape of pattern. Atoms must be equal;
// an ellipsis inside a pattern list matches any run of items, including none.
// On mismatch the returned path names the first differing position.
func Match(pattern, actual *Node) (bool, string) {
	return match(pattern, actual, "root")
}

func match(pattern, actual *Node, path string) (bool, string) {
	if pattern.Type == NodeEllipsis {
		return true, ""
	}
	if pattern.Type != actual.Type {
		return false, fmt.Sprintf("%s: expected %s %s, got %s %s", path, pattern.Type, pattern, actual.Type, actual)
	}
	if pattern.Type != NodeList {
		if pattern.Text != actual.Text {
			return false, fmt.Sprintf("%s: expected %s, got %s", path, pattern, actual)
		}
		return true, ""
	}
	return matchItems(pattern.Items, actual.Items, 0, path)
}

func matchItems(pattern, actual []*Node, offset int, path string) (bool, string) {
	if len(pattern) == 0 {
		if len(actual) == 0 {
			return true, ""
		}
		return false, fmt.Sprintf("%s[%d]: unexpected %s", path, offset, actual[0])
	}
	if pattern[0].Type == NodeEllipsis {
		if len(pattern) == 1 {
			return true, ""
		}
		var firstMismatch string
		for skip := 0; skip <= len(actual); skip++ {
			ok, why := matchItems(pattern[1:], actual[skip:], offset+skip, path)
			if ok {
				return true, ""
			}
			if firstMismatch == "" {
				firstMismatch = why
			}
		}
		return false, firstMismatch
	}
	if len(actual) == 0 {
		return false, fmt.Sprintf("%s[%d]: missing %s", path, offset, pattern[0])
	}
	if ok, why := match(pattern[0], actual[0], fmt.Sprintf("%s[%d]", path, offset)); !ok {
		return false, why
	}
	return matchItems(pattern[1:], actual[1:], offset+1, path)
}

// Parse reads exactly one datum from input. Comments run from ';' to the end
// of the line.
func Parse(input string) (*Node, error) {
	r := &reader{src: input}
	n, err := r.datum()
	if err != nil {
		return nil, err
	}
	r.skipSpace()
	if !r.eof() {
		return nil, fmt.Errorf("unexpected %q after datum at offset %d", r.src[r.pos], r.pos)
	}
	return n, nil
}

type reader struct {
	src string
	pos int
}

func (r *reader) eof() bool {
	return r.pos >= len(r.src)
}

func (r *reader) skipSpace() {
	for !r.eof() {
		c := r.src[r.pos]
		switch {
		case c == ';':
			for !r.eof() && r.src[r.pos] != '\n' {
				r.pos++
			}
		case unicode.IsSpace(rune(c)):
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) datum() (*Node, error) {
	r.skipSpace()
	if r.eof() {
		return nil, errors.New("unexpected end of input")
	}
	c := r.src[r.pos]
	switch {
	case c == '(':
		return r.list()
	case c == ')':
		return nil, fmt.Errorf("unexpected ')' at offset %d", r.pos)
	case c == '"':
		return r.str()
	case strings.HasPrefix(r.src[r.pos:], "..."):
		r.pos += 3
		return NewEllipsis(), nil
	case isLetter(c):
		return NewSymbol(r.span(isSymbolChar)), nil
	case isDigit(c):
		return NewInteger(r.integer()), nil
	case c == '+' || c == '-':
		if r.pos+1 < len(r.src) && isDigit(r.src[r.pos+1]) {
			return NewInteger(r.integer()), nil
		}
		// A lone sign is a symbol.
		r.pos++
		return NewSymbol(string(c)), nil
	default:
		return nil, fmt.Errorf("unexpected character '%c'", c)
	}
}

func (r *reader) list() (*Node, error) {
	open := r.pos
	r.pos++
	items := []*Node{}
	for {
		r.skipSpace()
		if r.eof() {
			return nil, fmt.Errorf("unclosed '(' at offset %d", open)
		}
		if r.src[r.pos] == ')' {
			r.pos++
			return NewList(items), nil
		}
		item, err := r.datum()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (r *reader) str() (*Node, error) {
	var b strings.Builder
	r.pos++
	for !r.eof() {
		c := r.src[r.pos]
		r.pos++
		if c == '"' {
			return NewString(b.String()), nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if r.eof() {
			break
		}
		esc := r.src[r.pos]
		r.pos++
		switch esc {
		case '"', '\\':
			b.WriteByte(esc)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			return nil, fmt.Errorf("invalid escape sequence: \\%c", esc)
		}
	}
	return nil, errors.New("unterminated string")
}

func (r *reader) integer() string {
	start := r.pos
	if c := r.src[r.pos]; c == '+' || c == '-' {
		r.pos++
	}
	r.span(isDigit)
	return r.src[start:r.pos]
}

func (r *reader) span(ok func(byte) bool) string {
	start := r.pos
	for !r.eof() && ok(r.src[r.pos]) {
		r.pos++
	}
	return r.src[start:r.pos]
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isSymbolChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}
