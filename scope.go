package main

import "fmt"

// Type is the static type of a symbol or expression.
type Type int

const (
	// TypeError marks an expression that already produced a diagnostic.
	TypeError Type = iota
	TypeInt
	TypeVoid
	TypeArray
	TypeReal
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeVoid:
		return "void"
	case TypeArray:
		return "array"
	case TypeReal:
		return "real"
	default:
		return "error"
	}
}

// SymbolKind says what a name denotes.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymArray
	SymFunc
)

func (k SymbolKind) String() string {
	switch k {
	case SymVar:
		return "var"
	case SymArray:
		return "array"
	case SymFunc:
		return "func"
	default:
		return fmt.Sprintf("SymbolKind(%d)", int(k))
	}
}

// Symbol is a declared name. (Name, Scope) is unique.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  Type // variables: int or void; arrays: array; functions: return type
	Scope int
	Line  int

	// Functions:
	Params  []Type
	Entry   int // index of the FUNC instruction
	Builtin bool

	// Arrays: declared element count, 0 for array parameters.
	Length  int
	IsParam bool

	// Storage, assigned by the allocator.
	Loc       Operand
	Allocated bool
}

// ValueType is the type of the symbol when it is named in an expression.
func (s *Symbol) ValueType() Type {
	switch s.Kind {
	case SymArray:
		return TypeArray
	case SymFunc:
		return TypeError
	default:
		return s.Type
	}
}

// RedeclarationError is returned by Declare when the name already exists in the
// innermost scope.
type RedeclarationError struct {
	Name string
	Prev *Symbol
}

func (e *RedeclarationError) Error() string {
	return fmt.Sprintf("'%s' is already defined in this scope.", e.Name)
}

// Scope is one level of the scope stack.
type Scope struct {
	ID      int
	Parent  *Scope
	symbols []*Symbol
	byName  map[string]*Symbol
}

func (s *Scope) Symbols() []*Symbol {
	return s.symbols
}

// ScopeTable is a stack of nested scopes over one implicit outermost scope.
type ScopeTable struct {
	current *Scope
	nextID  int
	depth   int
	all     []*Symbol
}

// NewScopeTable creates the outermost scope with the output builtin in it.
func NewScopeTable() *ScopeTable {
	st := &ScopeTable{}
	st.current = st.newScope(nil)
	st.Declare(&Symbol{
		Name:    "output",
		Kind:    SymFunc,
		Type:    TypeVoid,
		Params:  []Type{TypeInt},
		Builtin: true,
	})
	return st
}

func (st *ScopeTable) newScope(parent *Scope) *Scope {
	s := &Scope{ID: st.nextID, Parent: parent, byName: make(map[string]*Symbol)}
	st.nextID++
	return s
}

func (st *ScopeTable) EnterScope() {
	st.current = st.newScope(st.current)
	st.depth++
}

func (st *ScopeTable) ExitScope() {
	if st.current.Parent == nil {
		panic("error: exit of the outermost scope")
	}
	st.current = st.current.Parent
	st.depth--
}

// Depth is the number of scopes entered and not yet exited.
func (st *ScopeTable) Depth() int {
	return st.depth
}

func (st *ScopeTable) Current() *Scope {
	return st.current
}

// IsGlobal reports whether the innermost scope is the outermost one.
func (st *ScopeTable) IsGlobal() bool {
	return st.current.Parent == nil
}

// Declare adds sym to the innermost scope.
func (st *ScopeTable) Declare(sym *Symbol) error {
	if prev, ok := st.current.byName[sym.Name]; ok {
		return &RedeclarationError{Name: sym.Name, Prev: prev}
	}
	sym.Scope = st.current.ID
	st.current.byName[sym.Name] = sym
	st.current.symbols = append(st.current.symbols, sym)
	st.all = append(st.all, sym)
	return nil
}

// Resolve finds name, innermost scope first. It returns nil for an
// undeclared name.
func (st *ScopeTable) Resolve(name string) *Symbol {
	for s := st.current; s != nil; s = s.Parent {
		if sym, ok := s.byName[name]; ok {
			return sym
		}
	}
	return nil
}

// Symbols returns every symbol ever declared, in declaration order.
func (st *ScopeTable) Symbols() []*Symbol {
	return st.all
}
