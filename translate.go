package main

// translator is the set of semantic actions the parser fires as it recognises
// productions. Each hook reads and writes the shared compilation context:
// scope mutations, semantic checks and instruction emission all happen here,
// in recognition order.
type translator struct {
	ctx   *Context
	fn    *Symbol
	loops []*loop
}

type loop struct {
	begin  int
	jpf    int
	breaks []int
}

// call tracks a call expression while its arguments are being translated.
type call struct {
	sym  *Symbol
	line int
	args int
	bad  bool
	// output's argument, printed once the call is complete.
	printed Operand
}

// logical tracks a short-circuit && or || between its two operands.
type logical struct {
	op     string
	result Operand
	jpf    int
	bad    bool
}

func typeOf(tok Token) Type {
	if tok.Is("void") {
		return TypeVoid
	}
	return TypeInt
}

func (t *translator) emit(op Opcode, a1, a2, a3 Operand) int {
	return t.ctx.Emitter.Emit(op, a1, a2, a3)
}

func (t *translator) check() Validator {
	return t.ctx.Validator
}

// declareVariable handles "int x;" and "int x[n];" in any scope.
func (t *translator) declareVariable(typ, name Token, size *Token) {
	sym := &Symbol{Name: name.Lexeme, Kind: SymVar, Type: typeOf(typ), Line: name.Line}
	if !t.check().VariableType(name.Line, name.Lexeme, sym.Type) {
		sym.Type = TypeError
	}
	if size != nil {
		sym.Kind = SymArray
		sym.Length = int(size.Value)
		if size.Real || !t.check().ArraySize(name.Line, name.Lexeme, size.Value) {
			sym.Length = 1
		}
	}
	if err := t.ctx.Scopes.Declare(sym); err != nil {
		t.check().Redeclaration(name.Line, err)
		return
	}
	t.ctx.Emitter.Allocate(sym)
}

// beginFunction declares the function and opens its frame and scope.
func (t *translator) beginFunction(typ, name Token) *Symbol {
	sym := &Symbol{Name: name.Lexeme, Kind: SymFunc, Type: typeOf(typ), Line: name.Line}
	t.check().Redeclaration(name.Line, t.ctx.Scopes.Declare(sym))
	t.ctx.Emitter.BeginFunction(sym)
	t.ctx.Scopes.EnterScope()
	t.fn = sym
	return sym
}

func (t *translator) declareParam(fn *Symbol, typ, name Token, isArray bool) {
	sym := &Symbol{Name: name.Lexeme, Kind: SymVar, Type: typeOf(typ), Line: name.Line, IsParam: true}
	if !t.check().VariableType(name.Line, name.Lexeme, sym.Type) {
		sym.Type = TypeError
	}
	if isArray {
		sym.Kind = SymArray
	}
	fn.Params = append(fn.Params, sym.ValueType())
	t.check().Redeclaration(name.Line, t.ctx.Scopes.Declare(sym))
	// The slot is needed even for a duplicate so that parameter positions
	// stay aligned with the arguments.
	t.ctx.Emitter.Allocate(sym)
}

func (t *translator) endParams(fn *Symbol) {
	t.ctx.Emitter.ReserveReturnSlot()
	if fn.Name == "main" {
		t.check().MainSignature(fn.Line, fn)
		t.ctx.Emitter.SetMain(fn.Entry)
	}
}

func (t *translator) endFunction(fn *Symbol) {
	t.ctx.Emitter.EndFunction()
	t.ctx.Scopes.ExitScope()
	t.fn = nil
}

func (t *translator) enterBlock() {
	t.ctx.Scopes.EnterScope()
}

func (t *translator) exitBlock() {
	t.ctx.Scopes.ExitScope()
}

func (t *translator) number(tok Token) value {
	if tok.Real {
		return value{Type: TypeReal, Op: Imm(tok.Value)}
	}
	return value{Type: TypeInt, Op: Imm(tok.Value)}
}

// name translates a bare identifier.
func (t *translator) name(tok Token) value {
	sym := t.ctx.Scopes.Resolve(tok.Lexeme)
	if !t.check().Declared(tok.Line, tok.Lexeme, sym) || !t.check().Name(tok.Line, sym) {
		return errValue
	}
	if sym.Type == TypeError {
		return errValue
	}
	if sym.Kind == SymArray {
		return value{Type: TypeArray, Op: sym.Loc, Sym: sym}
	}
	return value{Type: TypeInt, Op: sym.Loc, Sym: sym, Assignable: true}
}

// arrayBase yields an operand holding the address of the first element.
// Array parameters already hold that address.
func (t *translator) arrayBase(sym *Symbol) Operand {
	if sym.IsParam {
		return sym.Loc
	}
	base := t.ctx.Emitter.NewTemp()
	t.emit(OpAddr, sym.Loc, Operand{}, base)
	return base
}

func (t *translator) index(tok Token, idx value) value {
	sym := t.ctx.Scopes.Resolve(tok.Lexeme)
	if !t.check().Declared(tok.Line, tok.Lexeme, sym) {
		return errValue
	}
	if !t.check().Index(tok.Line, sym, idx) {
		return errValue
	}
	base := t.arrayBase(sym)
	addr := t.ctx.Emitter.NewTemp()
	t.emit(OpElem, base, idx.Op, addr)
	return value{Type: TypeInt, Op: addr.Deref(), Sym: sym, Assignable: true}
}

func (t *translator) beginCall(tok Token) *call {
	c := &call{line: tok.Line}
	sym := t.ctx.Scopes.Resolve(tok.Lexeme)
	if !t.check().Declared(tok.Line, tok.Lexeme, sym) || !t.check().Callee(tok.Line, sym) {
		c.bad = true
		return c
	}
	c.sym = sym
	return c
}

func (t *translator) argument(c *call, x value) {
	i := c.args
	c.args++
	if c.bad {
		return
	}
	t.check().Argument(c.line, c.sym, i, x)
	if i >= len(c.sym.Params) {
		return
	}
	if c.sym.Builtin {
		c.printed = x.Op
		return
	}
	if x.Type == TypeArray && x.Sym != nil {
		t.emit(OpParam, t.arrayBase(x.Sym), Operand{}, Operand{})
		return
	}
	t.emit(OpParam, x.Op, Operand{}, Operand{})
}

func (t *translator) endCall(c *call) value {
	if c.bad {
		return errValue
	}
	t.check().ArgumentCount(c.line, c.sym, c.args)
	if c.sym.Builtin {
		if c.args == len(c.sym.Params) {
			t.emit(OpPrint, c.printed, Operand{}, Operand{})
		}
		return value{Type: TypeVoid, Op: Imm(0), Sym: c.sym}
	}
	if c.sym.Type == TypeVoid {
		t.emit(OpCall, LabelAt(c.sym.Entry), Imm(int64(c.args)), Operand{})
		return value{Type: TypeVoid, Op: Imm(0), Sym: c.sym}
	}
	result := t.ctx.Emitter.NewTemp()
	t.emit(OpCall, LabelAt(c.sym.Entry), Imm(int64(c.args)), result)
	return value{Type: TypeInt, Op: result, Sym: c.sym}
}

func (t *translator) unary(op Token, x value) value {
	if t.check().Int(op.Line, x) == TypeError {
		return errValue
	}
	result := t.ctx.Emitter.NewTemp()
	if op.Lexeme == "-" {
		t.emit(OpSub, Imm(0), x.Op, result)
	} else {
		t.emit(OpEq, x.Op, Imm(0), result)
	}
	return value{Type: TypeInt, Op: result}
}

func (t *translator) binary(op Token, left, right value) value {
	if t.check().Operands(op.Line, left, right) == TypeError {
		return errValue
	}
	code, ok := binaryOpcode(op.Lexeme)
	if !ok {
		panic("error: no instruction for operator " + op.Lexeme)
	}
	result := t.ctx.Emitter.NewTemp()
	t.emit(code, left.Op, right.Op, result)
	return value{Type: TypeInt, Op: result}
}

// beginLogical runs after the left operand of && or ||. The right operand is
// skipped at run time once the left one decides the result.
func (t *translator) beginLogical(op Token, left value) *logical {
	l := &logical{op: op.Lexeme}
	if t.check().Int(op.Line, left) == TypeError {
		l.bad = true
		return l
	}
	l.result = t.ctx.Emitter.NewTemp()
	if l.op == "&&" {
		t.emit(OpAssign, Imm(0), l.result, Operand{})
		l.jpf = t.emit(OpJpf, left.Op, LabelAt(unpatched), Operand{})
		return l
	}
	zero := t.ctx.Emitter.NewTemp()
	t.emit(OpAssign, Imm(1), l.result, Operand{})
	t.emit(OpEq, left.Op, Imm(0), zero)
	l.jpf = t.emit(OpJpf, zero, LabelAt(unpatched), Operand{})
	return l
}

func (t *translator) endLogical(l *logical, line int, right value) value {
	if t.check().Int(line, right) == TypeError || l.bad {
		if !l.bad {
			t.ctx.Emitter.Backpatch(l.jpf, t.ctx.Emitter.Here())
		}
		return errValue
	}
	t.emit(OpNe, right.Op, Imm(0), l.result)
	t.ctx.Emitter.Backpatch(l.jpf, t.ctx.Emitter.Here())
	return value{Type: TypeInt, Op: l.result}
}

func (t *translator) assign(line int, target, x value) value {
	if t.check().Assignment(line, target, x) == TypeError {
		return errValue
	}
	t.emit(OpAssign, x.Op, target.Op, Operand{})
	return value{Type: TypeInt, Op: target.Op}
}

// condition checks the controlling expression of if and while.
func (t *translator) condition(line int, cond value) Operand {
	if t.check().Int(line, cond) == TypeError {
		return Imm(0)
	}
	return cond.Op
}

func (t *translator) beginIf(line int, cond value) int {
	return t.emit(OpJpf, t.condition(line, cond), LabelAt(unpatched), Operand{})
}

// elseBranch ends the then-branch: it jumps over the else-branch and lands
// the false edge of the condition here.
func (t *translator) elseBranch(jpf int) int {
	jp := t.emit(OpJp, LabelAt(unpatched), Operand{}, Operand{})
	t.ctx.Emitter.Backpatch(jpf, t.ctx.Emitter.Here())
	return jp
}

func (t *translator) endIf(at int) {
	t.ctx.Emitter.Backpatch(at, t.ctx.Emitter.Here())
}

func (t *translator) beginWhile() *loop {
	l := &loop{begin: t.ctx.Emitter.Here(), jpf: -1}
	t.loops = append(t.loops, l)
	return l
}

func (t *translator) whileCond(l *loop, line int, cond value) {
	l.jpf = t.emit(OpJpf, t.condition(line, cond), LabelAt(unpatched), Operand{})
}

func (t *translator) endWhile(l *loop) {
	t.emit(OpJp, LabelAt(l.begin), Operand{}, Operand{})
	end := t.ctx.Emitter.Here()
	if l.jpf >= 0 {
		t.ctx.Emitter.Backpatch(l.jpf, end)
	}
	for _, at := range l.breaks {
		t.ctx.Emitter.Backpatch(at, end)
	}
	t.loops = t.loops[:len(t.loops)-1]
}

func (t *translator) breakStmt(tok Token) {
	if !t.check().LoopJump(tok.Line, "break", len(t.loops) > 0) {
		return
	}
	l := t.loops[len(t.loops)-1]
	l.breaks = append(l.breaks, t.emit(OpJp, LabelAt(unpatched), Operand{}, Operand{}))
}

func (t *translator) continueStmt(tok Token) {
	if !t.check().LoopJump(tok.Line, "continue", len(t.loops) > 0) {
		return
	}
	l := t.loops[len(t.loops)-1]
	t.emit(OpJp, LabelAt(l.begin), Operand{}, Operand{})
}

func (t *translator) returnStmt(line int, x *value) {
	t.check().Return(line, t.fn, x)
	if x != nil && x.Type == TypeInt {
		t.emit(OpReturn, x.Op, Operand{}, Operand{})
		return
	}
	t.emit(OpReturn, Operand{}, Operand{}, Operand{})
}

// finish runs once at end of input.
func (t *translator) finish(line int) *Program {
	t.check().MainDeclared(line, t.ctx.Scopes.Resolve("main"))
	return t.ctx.Emitter.Finish()
}
