package main

import (
	"errors"
	"fmt"
	"strings"
)

// Category separates the three independent diagnostic streams.
type Category int

const (
	Lexical Category = iota
	Syntax
	Semantic
)

func (c Category) String() string {
	switch c {
	case Lexical:
		return "Lexical"
	case Syntax:
		return "Syntax"
	case Semantic:
		return "Semantic"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Sentinel texts used when a collection is empty.
const (
	NoLexicalErrors  = "There is no lexical errors."
	NoSyntaxErrors   = "There is no syntax error."
	NoSemanticErrors = "The input program is semantically correct."
)

// Diagnostic is a user-facing compile-time error.
type Diagnostic struct {
	Category Category
	Line     int
	Message  string
}

func (d Diagnostic) String() string {
	switch d.Category {
	case Lexical:
		return fmt.Sprintf("%d.\t%s", d.Line, d.Message)
	case Syntax:
		return fmt.Sprintf("#%d : syntax error, %s", d.Line, d.Message)
	default:
		return fmt.Sprintf("#%d : Semantic Error! %s", d.Line, d.Message)
	}
}

// ErrorCollection accumulates the diagnostics of one category in the order they
// were found.
type ErrorCollection struct {
	category Category
	items    []Diagnostic
}

func NewErrorCollection(c Category) *ErrorCollection {
	return &ErrorCollection{category: c}
}

func (ec *ErrorCollection) Add(line int, message string) {
	ec.items = append(ec.items, Diagnostic{Category: ec.category, Line: line, Message: message})
}

func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.items) > 0
}

func (ec *ErrorCollection) Len() int {
	return len(ec.items)
}

func (ec *ErrorCollection) Items() []Diagnostic {
	return ec.items
}

// String renders the collection, or the category's sentinel text when it is
// empty. Lexical errors on the same line share one output line.
func (ec *ErrorCollection) String() string {
	if len(ec.items) == 0 {
		switch ec.category {
		case Lexical:
			return NoLexicalErrors
		case Syntax:
			return NoSyntaxErrors
		default:
			return NoSemanticErrors
		}
	}

	var b strings.Builder
	for i, d := range ec.items {
		if ec.category == Lexical && i > 0 && ec.items[i-1].Line == d.Line {
			b.WriteString(" ")
			b.WriteString(d.Message)
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(d.String())
	}
	return b.String()
}

// Diagnostics holds the three collections of one compilation.
type Diagnostics struct {
	Lexical  *ErrorCollection
	Syntax   *ErrorCollection
	Semantic *ErrorCollection
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		Lexical:  NewErrorCollection(Lexical),
		Syntax:   NewErrorCollection(Syntax),
		Semantic: NewErrorCollection(Semantic),
	}
}

func (d *Diagnostics) HasErrors() bool {
	return d.Lexical.HasErrors() || d.Syntax.HasErrors() || d.Semantic.HasErrors()
}

// Report is the combined failure report: every non-empty section prefixed by
// its category name.
func (d *Diagnostics) Report() string {
	var sections []string
	for _, ec := range []*ErrorCollection{d.Lexical, d.Syntax, d.Semantic} {
		if ec.HasErrors() {
			sections = append(sections, ec.category.String()+" Errors:\n"+ec.String())
		}
	}
	return strings.Join(sections, "\n\n")
}

// Internal faults. These indicate a bug in the compiler, never a problem with
// the input program.
var (
	ErrInternal        = errors.New("internal compiler error")
	ErrUnresolvedLabel = fmt.Errorf("%w: unresolved label", ErrInternal)
)

// RuntimeErrorKind classifies a failure while running a compiled program.
type RuntimeErrorKind int

const (
	RuntimeFault RuntimeErrorKind = iota
	RuntimeStepLimit
	RuntimeTimeout
	RuntimeResourceLimit
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case RuntimeFault:
		return "fault"
	case RuntimeStepLimit:
		return "step limit"
	case RuntimeTimeout:
		return "timeout"
	case RuntimeResourceLimit:
		return "resource limit"
	default:
		return fmt.Sprintf("RuntimeErrorKind(%d)", int(k))
	}
}

// RuntimeError is a failure of the program being run, never of the compiler.
// PC is the instruction that failed, or -1 when the program ran out of process.
type RuntimeError struct {
	Kind    RuntimeErrorKind
	PC      int
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.PC >= 0 {
		msg = fmt.Sprintf("runtime error at %d: %s", e.PC, msg)
	} else {
		msg = "runtime error: " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
