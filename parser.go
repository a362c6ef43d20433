package main

// Context is the state of one compilation. Nothing in it is shared between
// compilations, so independent sources can be compiled concurrently.
type Context struct {
	Lexer       *Lexer
	Scopes      *ScopeTable
	Emitter     *Emitter
	Diagnostics *Diagnostics
	Validator   Validator
}

func NewContext(src []byte) *Context {
	diags := NewDiagnostics()
	return &Context{
		Lexer:       NewLexer(src, diags.Lexical),
		Scopes:      NewScopeTable(),
		Emitter:     NewEmitter(),
		Diagnostics: diags,
		Validator:   Validator{Errors: diags.Semantic},
	}
}

// Recovery describes a syntax error a rule recovered from: the diagnostic it
// recorded and the token parsing resumed at.
type Recovery struct {
	Diagnostic Diagnostic
	Resume     Token
}

// Parsed is the result of one grammar rule. Expression rules also carry the
// translated value.
type Parsed struct {
	Node     *TreeNode
	Value    value
	Recovery *Recovery
}

func (p Parsed) recovered(rec *Recovery) Parsed {
	if p.Recovery == nil {
		p.Recovery = rec
	}
	return p
}

// syncSet is the set of tokens a rule stops skipping at during recovery. The
// entries "ID" and "NUM" stand for token classes; the rest are literals.
type syncSet []string

func (s syncSet) has(tok Token) bool {
	for _, want := range s {
		if matches(tok, want) {
			return true
		}
	}
	return false
}

func union(sets ...syncSet) syncSet {
	var out syncSet
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

var (
	declSync = syncSet{";", "int", "void"}
	stmtSync = syncSet{";", "{", "}", "if", "else", "while", "return", "break", "continue", "int", "void"}
	exprSync = union(stmtSync, syncSet{")", "]", ","})
)

func matches(tok Token, want string) bool {
	switch want {
	case "ID":
		return tok.Kind == ID
	case "NUM":
		return tok.Kind == NUM
	default:
		return tok.Is(want)
	}
}

// Parser is a predictive recursive-descent parser that translates as it
// recognises. It pulls tokens from the lexer one at a time.
type Parser struct {
	ctx  *Context
	tr   *translator
	tok  Token
	prev Token
	// consumed counts tokens taken, for the no-progress guards.
	consumed    int
	eofReported bool
}

func NewParser(ctx *Context) *Parser {
	p := &Parser{ctx: ctx, tr: &translator{ctx: ctx}}
	p.tok = ctx.Lexer.NextToken()
	p.prev = Token{Line: p.tok.Line}
	return p
}

// ParseResult is everything a single pass over the input produces.
type ParseResult struct {
	Tree    *TreeNode
	Program *Program
	Parsed  Parsed
}

// Parse translates the whole input. It always reaches the end of input.
func (p *Parser) Parse() *ParseResult {
	program := p.program()
	prog := p.tr.finish(p.tok.Line)
	return &ParseResult{Tree: program.Node, Program: prog, Parsed: program}
}

func (p *Parser) advance() {
	if p.tok.Kind == EOF {
		return
	}
	p.prev = p.tok
	p.tok = p.ctx.Lexer.NextToken()
	p.consumed++
}

func (p *Parser) syntaxError(line int, message string) *Recovery {
	d := Diagnostic{Category: Syntax, Line: line, Message: message}
	if !p.eofReported {
		p.ctx.Diagnostics.Syntax.Add(line, message)
	}
	return &Recovery{Diagnostic: d, Resume: p.tok}
}

// unexpectedEOF is reported once. Every later syntax error is suppressed.
func (p *Parser) unexpectedEOF() *Recovery {
	rec := p.syntaxError(p.tok.Line, "Unexpected EOF")
	p.eofReported = true
	return rec
}

// expect consumes a token matching want. Otherwise it recovers in panic mode:
// if the current token can follow, want is reported missing and nothing is
// consumed; if not, the current token is reported illegal and tokens are
// skipped until want (which is consumed) or a token in sync.
func (p *Parser) expect(want string, sync syncSet) (*TreeNode, *Recovery) {
	if matches(p.tok, want) {
		n := leaf(p.tok)
		p.advance()
		return n, nil
	}
	if p.tok.Kind == EOF {
		return nil, p.unexpectedEOF()
	}
	if sync.has(p.tok) {
		return nil, p.syntaxError(p.prev.Line, "missing "+want)
	}
	rec := p.syntaxError(p.tok.Line, "illegal "+p.tok.Lexeme)
	p.advance()
	for !matches(p.tok, want) && !sync.has(p.tok) && p.tok.Kind != EOF {
		p.advance()
	}
	rec.Resume = p.tok
	if matches(p.tok, want) {
		n := leaf(p.tok)
		p.advance()
		return n, rec
	}
	if p.tok.Kind == EOF {
		p.unexpectedEOF()
	}
	return nil, rec
}

// skip reports the current token as illegal and drops tokens until one in
// sync. At least one token is consumed.
func (p *Parser) skip(sync syncSet) *Recovery {
	if p.tok.Kind == EOF {
		return p.unexpectedEOF()
	}
	rec := p.syntaxError(p.tok.Line, "illegal "+p.tok.Lexeme)
	p.advance()
	for !sync.has(p.tok) && p.tok.Kind != EOF {
		p.advance()
	}
	rec.Resume = p.tok
	return rec
}

func isTypeSpecifier(tok Token) bool {
	return tok.Is("int") || tok.Is("void")
}

// program = declaration { declaration } EOF
func (p *Parser) program() Parsed {
	result := Parsed{Node: newNode("program")}
	if p.tok.Kind == EOF {
		result = result.recovered(p.unexpectedEOF())
	}
	for p.tok.Kind != EOF {
		if !isTypeSpecifier(p.tok) {
			result = result.recovered(p.skip(declSync[1:]))
			continue
		}
		decl := p.declaration()
		result.Node.Add(decl.Node)
		result = result.recovered(decl.Recovery)
	}
	return result
}

// declaration = type-specifier ID ( var-declaration-rest | fun-declaration-rest )
func (p *Parser) declaration() Parsed {
	typ := p.tok
	p.advance()
	if p.tok.Kind != ID {
		_, rec := p.expect("ID", declSync)
		if p.tok.Is(";") {
			p.advance()
		}
		return Parsed{Recovery: rec}
	}
	name := p.tok
	p.advance()
	if p.tok.Is("(") {
		return p.funDeclaration(typ, name)
	}
	return p.varDeclaration(typ, name, declSync)
}

// var-declaration-rest = [ "[" NUM "]" ] ";"
func (p *Parser) varDeclaration(typ, name Token, sync syncSet) Parsed {
	result := Parsed{Node: newNode("var-declaration", leaf(typ), leaf(name))}
	var size *Token
	if p.tok.Is("[") {
		p.advance()
		num, rec := p.expect("NUM", union(sync, syncSet{"]"}))
		if num != nil {
			size = num.Token
			result.Node.Add(num)
		}
		result = result.recovered(rec)
		_, rec = p.expect("]", sync)
		result = result.recovered(rec)
		if size == nil {
			size = &Token{Kind: NUM, Lexeme: "1", Line: name.Line, Value: 1}
		}
	}
	_, rec := p.expect(";", sync)
	result = result.recovered(rec)
	p.tr.declareVariable(typ, name, size)
	return result
}

// fun-declaration-rest = "(" params ")" compound-stmt
func (p *Parser) funDeclaration(typ, name Token) Parsed {
	result := Parsed{Node: newNode("fun-declaration", leaf(typ), leaf(name))}
	fn := p.tr.beginFunction(typ, name)
	defer p.tr.endFunction(fn)

	p.advance() // (
	params := p.params(fn)
	result.Node.Add(params.Node)
	result = result.recovered(params.Recovery)
	_, rec := p.expect(")", union(stmtSync, syncSet{"{"}))
	result = result.recovered(rec)
	p.tr.endParams(fn)

	body := p.compoundStmt(false)
	result.Node.Add(body.Node)
	return result.recovered(body.Recovery)
}

// params = "void" | param { "," param }
func (p *Parser) params(fn *Symbol) Parsed {
	result := Parsed{Node: newNode("params")}
	if p.tok.Is(")") {
		return result.recovered(p.syntaxError(p.tok.Line, "missing void"))
	}
	if p.tok.Is("void") {
		typ := p.tok
		p.advance()
		if p.tok.Is(")") {
			result.Node.Add(leaf(typ))
			return result
		}
		param := p.param(fn, typ)
		result.Node.Add(param.Node)
		result = result.recovered(param.Recovery)
	} else {
		param := p.param(fn, Token{})
		result.Node.Add(param.Node)
		result = result.recovered(param.Recovery)
	}
	for p.tok.Is(",") {
		p.advance()
		param := p.param(fn, Token{})
		result.Node.Add(param.Node)
		result = result.recovered(param.Recovery)
	}
	return result
}

var paramSync = syncSet{",", ")", "{"}

// param = type-specifier ID [ "[" "]" ]
//
// typ is the already consumed type specifier, or the zero Token.
func (p *Parser) param(fn *Symbol, typ Token) Parsed {
	if typ.Kind == "" {
		if !isTypeSpecifier(p.tok) {
			if paramSync.has(p.tok) || p.tok.Kind == EOF {
				return Parsed{Recovery: p.syntaxError(p.prev.Line, "missing int")}
			}
			rec := p.skip(paramSync)
			return Parsed{Recovery: rec}
		}
		typ = p.tok
		p.advance()
	}
	result := Parsed{Node: newNode("param", leaf(typ))}
	name, rec := p.expect("ID", paramSync)
	if name == nil {
		return result.recovered(rec)
	}
	result.Node.Add(name)
	result = result.recovered(rec)
	isArray := false
	if p.tok.Is("[") {
		p.advance()
		_, rec := p.expect("]", paramSync)
		result = result.recovered(rec)
		isArray = true
		result.Node.Add(leaf(Token{Kind: SYMBOL, Lexeme: "[]", Line: name.Token.Line}))
	}
	p.tr.declareParam(fn, typ, *name.Token, isArray)
	return result
}

// compound-stmt = "{" { var-declaration } { statement } "}"
//
// A function body shares the scope of its parameters; any other block opens
// a scope of its own.
func (p *Parser) compoundStmt(newScope bool) Parsed {
	result := Parsed{Node: newNode("compound-stmt")}
	_, rec := p.expect("{", stmtSync)
	result = result.recovered(rec)
	if newScope {
		p.tr.enterBlock()
		defer p.tr.exitBlock()
	}

	for isTypeSpecifier(p.tok) {
		typ := p.tok
		p.advance()
		name, rec := p.expect("ID", stmtSync)
		if name == nil {
			result = result.recovered(rec)
			if p.tok.Is(";") {
				p.advance()
			}
			continue
		}
		decl := p.varDeclaration(typ, *name.Token, stmtSync)
		result.Node.Add(decl.Node)
		result = result.recovered(decl.Recovery)
	}

	for !p.tok.Is("}") && p.tok.Kind != EOF {
		start := p.consumed
		stmt := p.statement()
		result.Node.Add(stmt.Node)
		result = result.recovered(stmt.Recovery)
		if p.consumed == start {
			result = result.recovered(p.skip(stmtSync))
		}
	}
	_, rec = p.expect("}", stmtSync)
	return result.recovered(rec)
}

func startsExpression(tok Token) bool {
	return tok.Kind == ID || tok.Kind == NUM || tok.Is("(") || tok.Is("-") || tok.Is("!")
}

func (p *Parser) statement() Parsed {
	switch {
	case p.tok.Is("{"):
		return p.compoundStmt(true)
	case p.tok.Is("if"):
		return p.selectionStmt()
	case p.tok.Is("while"):
		return p.iterationStmt()
	case p.tok.Is("return"):
		return p.returnStmt()
	case p.tok.Is("break"), p.tok.Is("continue"):
		return p.jumpStmt()
	case p.tok.Is(";"):
		p.advance()
		return Parsed{Node: newNode("expression-stmt")}
	case startsExpression(p.tok):
		result := Parsed{Node: newNode("expression-stmt")}
		e := p.expression()
		result.Node.Add(e.Node)
		result = result.recovered(e.Recovery)
		_, rec := p.expect(";", stmtSync)
		return result.recovered(rec)
	default:
		return Parsed{Recovery: p.skip(stmtSync)}
	}
}

// selection-stmt = "if" "(" expression ")" statement [ "else" statement ]
func (p *Parser) selectionStmt() Parsed {
	result := Parsed{Node: newNode("selection-stmt")}
	line := p.tok.Line
	p.advance()
	_, rec := p.expect("(", exprSync)
	result = result.recovered(rec)
	cond := p.expression()
	result.Node.Add(cond.Node)
	result = result.recovered(cond.Recovery)
	_, rec = p.expect(")", stmtSync)
	result = result.recovered(rec)

	jpf := p.tr.beginIf(line, cond.Value)
	then := p.statement()
	result.Node.Add(then.Node)
	result = result.recovered(then.Recovery)
	if !p.tok.Is("else") {
		p.tr.endIf(jpf)
		return result
	}
	p.advance()
	jp := p.tr.elseBranch(jpf)
	els := p.statement()
	result.Node.Add(els.Node)
	p.tr.endIf(jp)
	return result.recovered(els.Recovery)
}

// iteration-stmt = "while" "(" expression ")" statement
func (p *Parser) iterationStmt() Parsed {
	result := Parsed{Node: newNode("iteration-stmt")}
	line := p.tok.Line
	p.advance()
	l := p.tr.beginWhile()
	_, rec := p.expect("(", exprSync)
	result = result.recovered(rec)
	cond := p.expression()
	result.Node.Add(cond.Node)
	result = result.recovered(cond.Recovery)
	_, rec = p.expect(")", stmtSync)
	result = result.recovered(rec)
	p.tr.whileCond(l, line, cond.Value)

	body := p.statement()
	result.Node.Add(body.Node)
	p.tr.endWhile(l)
	return result.recovered(body.Recovery)
}

// return-stmt = "return" [ expression ] ";"
func (p *Parser) returnStmt() Parsed {
	result := Parsed{Node: newNode("return-stmt")}
	line := p.tok.Line
	p.advance()
	if p.tok.Is(";") {
		p.advance()
		p.tr.returnStmt(line, nil)
		return result
	}
	e := p.expression()
	result.Node.Add(e.Node)
	result = result.recovered(e.Recovery)
	p.tr.returnStmt(line, &e.Value)
	_, rec := p.expect(";", stmtSync)
	return result.recovered(rec)
}

// break-stmt = "break" ";"   continue-stmt = "continue" ";"
func (p *Parser) jumpStmt() Parsed {
	tok := p.tok
	p.advance()
	if tok.Is("break") {
		p.tr.breakStmt(tok)
	} else {
		p.tr.continueStmt(tok)
	}
	_, rec := p.expect(";", stmtSync)
	return Parsed{Node: newNode(tok.Lexeme + "-stmt"), Recovery: rec}
}

// expression = or-expression [ "=" expression ]
//
// Assignment is right-associative and needs an assignable left side, which
// is checked once the "=" is seen.
func (p *Parser) expression() Parsed {
	left := p.binaryExpression(1)
	if !p.tok.Is("=") {
		return left
	}
	eq := p.tok
	p.advance()
	right := p.expression()
	v := p.tr.assign(eq.Line, left.Value, right.Value)
	result := Parsed{Node: newNode("assign", left.Node, right.Node), Value: v}
	return result.recovered(left.Recovery).recovered(right.Recovery)
}

// precedence of a binary operator, 0 for any other token. Higher binds
// tighter.
func precedence(tok Token) int {
	if tok.Kind != SYMBOL {
		return 0
	}
	switch tok.Lexeme {
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=":
		return 3
	case "<", "<=", ">", ">=":
		return 4
	case "+", "-":
		return 5
	case "*", "/", "%":
		return 6
	default:
		return 0
	}
}

// binaryExpression parses a left-associative chain of operators whose
// precedence is at least minPrec.
func (p *Parser) binaryExpression(minPrec int) Parsed {
	left := p.unaryExpression()
	for {
		prec := precedence(p.tok)
		if prec == 0 || prec < minPrec {
			return left
		}
		op := p.tok
		p.advance()

		var l *logical
		if op.Is("&&") || op.Is("||") {
			l = p.tr.beginLogical(op, left.Value)
		}
		right := p.binaryExpression(prec + 1)
		var v value
		if l != nil {
			v = p.tr.endLogical(l, op.Line, right.Value)
		} else {
			v = p.tr.binary(op, left.Value, right.Value)
		}
		node := newNode("binary", left.Node, leaf(op), right.Node)
		left = Parsed{Node: node, Value: v}.recovered(left.Recovery).recovered(right.Recovery)
	}
}

// unary-expression = ( "-" | "!" ) unary-expression | factor
func (p *Parser) unaryExpression() Parsed {
	if !p.tok.Is("-") && !p.tok.Is("!") {
		return p.factor()
	}
	op := p.tok
	p.advance()
	x := p.unaryExpression()
	v := p.tr.unary(op, x.Value)
	return Parsed{Node: newNode("unary", leaf(op), x.Node), Value: v, Recovery: x.Recovery}
}

// factor = "(" expression ")" | NUM | ID | ID "[" expression "]" | ID "(" args ")"
func (p *Parser) factor() Parsed {
	switch {
	case p.tok.Is("("):
		p.advance()
		e := p.expression()
		_, rec := p.expect(")", exprSync)
		return e.recovered(rec)
	case p.tok.Kind == NUM:
		tok := p.tok
		p.advance()
		return Parsed{Node: leaf(tok), Value: p.tr.number(tok)}
	case p.tok.Kind == ID:
		name := p.tok
		p.advance()
		switch {
		case p.tok.Is("["):
			p.advance()
			idx := p.expression()
			_, rec := p.expect("]", exprSync)
			v := p.tr.index(name, idx.Value)
			result := Parsed{Node: newNode("index", leaf(name), idx.Node), Value: v}
			return result.recovered(idx.Recovery).recovered(rec)
		case p.tok.Is("("):
			return p.call(name)
		default:
			return Parsed{Node: leaf(name), Value: p.tr.name(name)}
		}
	case p.tok.Kind == EOF:
		return Parsed{Value: errValue, Recovery: p.unexpectedEOF()}
	case exprSync.has(p.tok):
		return Parsed{Value: errValue, Recovery: p.syntaxError(p.prev.Line, "missing expression")}
	default:
		rec := p.syntaxError(p.tok.Line, "illegal "+p.tok.Lexeme)
		p.advance()
		return Parsed{Value: errValue, Recovery: rec}
	}
}

// call = ID "(" [ expression { "," expression } ] ")"
func (p *Parser) call(name Token) Parsed {
	p.advance() // (
	c := p.tr.beginCall(name)
	args := newNode("args")
	result := Parsed{Node: newNode("call", leaf(name), args)}
	if !p.tok.Is(")") {
		for {
			arg := p.expression()
			args.Add(arg.Node)
			result = result.recovered(arg.Recovery)
			p.tr.argument(c, arg.Value)
			if !p.tok.Is(",") {
				break
			}
			p.advance()
		}
	}
	_, rec := p.expect(")", exprSync)
	result.Value = p.tr.endCall(c)
	return result.recovered(rec)
}
