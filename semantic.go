package main

import "fmt"

// value is the translation of an expression: its static type and the operand
// holding its result.
type value struct {
	Type Type
	Op   Operand
	// Sym is the variable or array named by the expression, or the callee when
	// the expression is a call.
	Sym        *Symbol
	Assignable bool
}

// errValue is the value of an expression that already produced a diagnostic.
var errValue = value{Type: TypeError, Op: Imm(0)}

// Validator holds the semantic rules. Its only state is the collection the
// rules write to; every rule is a pure check over its arguments.
type Validator struct {
	Errors *ErrorCollection
}

func (v Validator) errorf(line int, format string, args ...any) {
	v.Errors.Add(line, fmt.Sprintf(format, args...))
}

// Declared reports a reference to a name that does not resolve.
func (v Validator) Declared(line int, name string, sym *Symbol) bool {
	if sym == nil {
		v.errorf(line, "'%s' is not defined.", name)
		return false
	}
	return true
}

// Redeclaration turns a failed Declare into a diagnostic.
func (v Validator) Redeclaration(line int, err error) {
	if err != nil {
		v.Errors.Add(line, err.Error())
	}
}

// VariableType rejects void variables and arrays.
func (v Validator) VariableType(line int, name string, t Type) bool {
	if t == TypeVoid {
		v.errorf(line, "Illegal type of void for '%s'.", name)
		return false
	}
	return true
}

func (v Validator) ArraySize(line int, name string, n int64) bool {
	if n <= 0 {
		v.errorf(line, "Array size of '%s' must be positive.", name)
		return false
	}
	return true
}

// Int checks that x may be used where an int value is required. It returns
// TypeInt on success and TypeError otherwise.
func (v Validator) Int(line int, x value) Type {
	switch x.Type {
	case TypeInt:
		return TypeInt
	case TypeError:
		return TypeError
	case TypeVoid:
		if x.Sym != nil && x.Sym.Kind == SymFunc {
			v.errorf(line, "Void value of '%s' used in an expression.", x.Sym.Name)
			return TypeError
		}
	}
	v.errorf(line, "Type mismatch in operands, Got %s instead of int.", x.Type)
	return TypeError
}

// Operands checks both sides of an arithmetic, relational or logical operator.
func (v Validator) Operands(line int, left, right value) Type {
	lt := v.Int(line, left)
	if lt == TypeError {
		return TypeError
	}
	return v.Int(line, right)
}

// Assignment checks target = x.
func (v Validator) Assignment(line int, target, x value) Type {
	if target.Type == TypeError {
		return TypeError
	}
	if !target.Assignable {
		v.errorf(line, "Left side of assignment is not assignable.")
		return TypeError
	}
	switch x.Type {
	case TypeInt:
		return TypeInt
	case TypeError:
		return TypeError
	case TypeVoid:
		if x.Sym != nil && x.Sym.Kind == SymFunc {
			v.errorf(line, "Void value of '%s' used in an expression.", x.Sym.Name)
			return TypeError
		}
	}
	v.errorf(line, "Type mismatch in assignment, Got %s instead of int.", x.Type)
	return TypeError
}

// Index checks that sym can be subscripted with an index of type idx.
func (v Validator) Index(line int, sym *Symbol, idx value) bool {
	if sym.Kind != SymArray {
		v.errorf(line, "'%s' is not an array.", sym.Name)
		return false
	}
	switch idx.Type {
	case TypeInt:
		return true
	case TypeError:
		return false
	}
	v.errorf(line, "Array index of '%s' must be int, Got %s instead.", sym.Name, idx.Type)
	return false
}

// Name checks a bare identifier used as a value.
func (v Validator) Name(line int, sym *Symbol) bool {
	if sym.Kind == SymFunc {
		v.errorf(line, "Function '%s' used without a call.", sym.Name)
		return false
	}
	return true
}

func (v Validator) Callee(line int, sym *Symbol) bool {
	if sym.Kind != SymFunc {
		v.errorf(line, "'%s' is not a function.", sym.Name)
		return false
	}
	return true
}

// Argument checks argument i (0-based) of a call to fn.
func (v Validator) Argument(line int, fn *Symbol, i int, x value) {
	if i >= len(fn.Params) || x.Type == TypeError {
		return
	}
	want := fn.Params[i]
	if x.Type == want || want == TypeError {
		return
	}
	v.errorf(line, "Mismatch in type of argument %d of '%s'. Expected '%s' but got '%s' instead.",
		i+1, fn.Name, want, x.Type)
}

func (v Validator) ArgumentCount(line int, fn *Symbol, n int) {
	if n != len(fn.Params) {
		v.errorf(line, "Mismatch in numbers of arguments of '%s'.", fn.Name)
	}
}

// Return checks a return statement inside fn. x is nil for a bare return.
func (v Validator) Return(line int, fn *Symbol, x *value) {
	if fn == nil {
		return
	}
	if fn.Type == TypeVoid {
		if x != nil {
			v.errorf(line, "Function '%s' of type void cannot return a value.", fn.Name)
		}
		return
	}
	if x == nil {
		v.errorf(line, "Function '%s' must return a value of type int.", fn.Name)
		return
	}
	switch {
	case x.Type == TypeInt || x.Type == TypeError:
	case x.Type == TypeVoid && x.Sym != nil && x.Sym.Kind == SymFunc:
		v.errorf(line, "Void value of '%s' used in an expression.", x.Sym.Name)
	default:
		v.errorf(line, "Function '%s' must return int, got %s instead.", fn.Name, x.Type)
	}
}

// LoopJump rejects break and continue outside a while loop.
func (v Validator) LoopJump(line int, keyword string, inLoop bool) bool {
	if !inLoop {
		v.errorf(line, "No 'while' found for '%s'.", keyword)
		return false
	}
	return true
}

// MainSignature checks a function named main.
func (v Validator) MainSignature(line int, fn *Symbol) {
	if fn.Type != TypeVoid || len(fn.Params) != 0 {
		v.errorf(line, "main must be declared as void main(void).")
	}
}

// MainDeclared is checked once at the end of input.
func (v Validator) MainDeclared(line int, sym *Symbol) {
	if sym == nil || sym.Kind != SymFunc || sym.Builtin {
		v.errorf(line, "main function not found.")
	}
}
