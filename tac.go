package main

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// WordSize is the size of one storage slot in the three-address program.
	WordSize = 4
	// DataBase is the address of the first global.
	DataBase = 500
)

// Opcode is a three-address instruction operator.
type Opcode string

const (
	OpAdd    Opcode = "ADD"
	OpSub    Opcode = "SUB"
	OpMult   Opcode = "MULT"
	OpDiv    Opcode = "DIV"
	OpMod    Opcode = "MOD"
	OpEq     Opcode = "EQ"
	OpNe     Opcode = "NE"
	OpLt     Opcode = "LT"
	OpLe     Opcode = "LE"
	OpGt     Opcode = "GT"
	OpGe     Opcode = "GE"
	OpAssign Opcode = "ASSIGN"
	OpAddr   Opcode = "ADDR"
	OpElem   Opcode = "ELEM"
	OpJpf    Opcode = "JPF"
	OpJp     Opcode = "JP"
	OpPrint  Opcode = "PRINT"
	OpParam  Opcode = "PARAM"
	OpCall   Opcode = "CALL"
	OpFunc   Opcode = "FUNC"
	OpReturn Opcode = "RETURN"
)

var opcodes = map[string]Opcode{}

func init() {
	for _, op := range []Opcode{
		OpAdd, OpSub, OpMult, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe,
		OpAssign, OpAddr, OpElem, OpJpf, OpJp, OpPrint, OpParam, OpCall, OpFunc, OpReturn,
	} {
		opcodes[string(op)] = op
	}
}

// binaryOpcode maps a source operator to its instruction.
func binaryOpcode(op string) (Opcode, bool) {
	switch op {
	case "+":
		return OpAdd, true
	case "-":
		return OpSub, true
	case "*":
		return OpMult, true
	case "/":
		return OpDiv, true
	case "%":
		return OpMod, true
	case "==":
		return OpEq, true
	case "!=":
		return OpNe, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLe, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGe, true
	default:
		return "", false
	}
}

// labelOperand returns which operand of op holds a jump target, or -1.
func labelOperand(op Opcode) int {
	switch op {
	case OpJp, OpCall:
		return 1
	case OpJpf:
		return 2
	default:
		return -1
	}
}

type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImm
	OperandGlobal // absolute data address
	OperandLocal  // offset from the frame base
	OperandLabel  // instruction index
)

// Operand is one argument of an instruction. An indirect operand names the
// word whose address is stored in the slot.
type Operand struct {
	Kind     OperandKind
	Value    int64
	Indirect bool
}

func Imm(v int64) Operand       { return Operand{Kind: OperandImm, Value: v} }
func GlobalAt(addr int) Operand { return Operand{Kind: OperandGlobal, Value: int64(addr)} }
func LocalAt(off int) Operand   { return Operand{Kind: OperandLocal, Value: int64(off)} }
func LabelAt(idx int) Operand   { return Operand{Kind: OperandLabel, Value: int64(idx)} }

// Deref returns the indirect form of a slot operand.
func (o Operand) Deref() Operand {
	o.Indirect = true
	return o
}

func (o Operand) IsNone() bool {
	return o.Kind == OperandNone
}

// IsSlot reports whether the operand names a storage location.
func (o Operand) IsSlot() bool {
	return o.Kind == OperandGlobal || o.Kind == OperandLocal
}

func (o Operand) String() string {
	var s string
	switch o.Kind {
	case OperandNone:
		return ""
	case OperandImm:
		return "#" + strconv.FormatInt(o.Value, 10)
	case OperandGlobal, OperandLabel:
		s = strconv.FormatInt(o.Value, 10)
	case OperandLocal:
		s = "fp+" + strconv.FormatInt(o.Value, 10)
	}
	if o.Indirect {
		return "@" + s
	}
	return s
}

// Instruction is one three-address instruction: an operator and up to three
// operands, the last of which is usually the result.
type Instruction struct {
	Op         Opcode
	A1, A2, A3 Operand
}

func (i Instruction) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", i.Op, i.A1, i.A2, i.A3)
}

func (i *Instruction) operand(n int) *Operand {
	switch n {
	case 1:
		return &i.A1
	case 2:
		return &i.A2
	default:
		return &i.A3
	}
}

type SlotKind int

const (
	SlotParam SlotKind = iota
	SlotReturn
	SlotLocal
	SlotTemp
)

func (k SlotKind) String() string {
	switch k {
	case SlotParam:
		return "param"
	case SlotReturn:
		return "return"
	case SlotLocal:
		return "local"
	default:
		return "temp"
	}
}

// Slot is one entry of an activation record.
type Slot struct {
	Name   string
	Kind   SlotKind
	Offset int
	Size   int
}

// Frame is the activation-record layout of one function. Offsets grow
// monotonically from the frame base and never overlap.
type Frame struct {
	Slots  []Slot
	Size   int
	Params int
}

func (f *Frame) alloc(name string, kind SlotKind, size int) int {
	off := f.Size
	f.Slots = append(f.Slots, Slot{Name: name, Kind: kind, Offset: off, Size: size})
	f.Size += size
	return off
}

// ReturnOffset is the offset of the return-value slot.
func (f *Frame) ReturnOffset() int {
	return f.Params * WordSize
}

// Function is the instruction range of one function body.
type Function struct {
	Name  string
	Entry int // the FUNC instruction
	End   int // one past the last instruction
	Frame *Frame
}

// Program is a complete three-address program. Instruction 0 calls main and
// instruction 1 jumps past the end, which halts.
type Program struct {
	Code       []Instruction
	Functions  []*Function
	GlobalSize int
}

// FunctionAt returns the function whose FUNC instruction is at entry.
func (p *Program) FunctionAt(entry int) *Function {
	for _, fn := range p.Functions {
		if fn.Entry == entry {
			return fn
		}
	}
	return nil
}

// String renders the listing, one "index\t(OP, a, b, c)" line per instruction.
func (p *Program) String() string {
	var b strings.Builder
	for i, ins := range p.Code {
		fmt.Fprintf(&b, "%d\t%s\n", i, ins)
	}
	return b.String()
}

// Emitter appends instructions in the order the parser requests them and
// assigns storage. It makes no decisions of its own.
type Emitter struct {
	prog       *Program
	fn         *Function
	nextGlobal int
	temps      int
}

const unpatched = -1

func NewEmitter() *Emitter {
	e := &Emitter{prog: &Program{}, nextGlobal: DataBase}
	e.Emit(OpCall, LabelAt(unpatched), Imm(0), Operand{})
	e.Emit(OpJp, LabelAt(unpatched), Operand{}, Operand{})
	return e
}

// Emit appends an instruction and returns its index for later backpatching.
func (e *Emitter) Emit(op Opcode, a1, a2, a3 Operand) int {
	e.prog.Code = append(e.prog.Code, Instruction{Op: op, A1: a1, A2: a2, A3: a3})
	return len(e.prog.Code) - 1
}

// Here is the index the next instruction will get.
func (e *Emitter) Here() int {
	return len(e.prog.Code)
}

// Backpatch sets the jump target of the instruction at index at.
func (e *Emitter) Backpatch(at, target int) {
	ins := &e.prog.Code[at]
	n := labelOperand(ins.Op)
	if n < 0 {
		panic(fmt.Sprintf("error: backpatch of %s at %d", ins.Op, at))
	}
	*ins.operand(n) = LabelAt(target)
}

// InFunction reports whether a function body is being emitted.
func (e *Emitter) InFunction() bool {
	return e.fn != nil
}

// NewTemp allocates a fresh unnamed word in the current frame (or in global
// data outside functions).
func (e *Emitter) NewTemp() Operand {
	e.temps++
	name := "t" + strconv.Itoa(e.temps)
	if e.fn != nil {
		return LocalAt(e.fn.Frame.alloc(name, SlotTemp, WordSize))
	}
	addr := e.nextGlobal
	e.nextGlobal += WordSize
	return GlobalAt(addr)
}

// Allocate assigns sym the next free storage. Declared arrays take a
// contiguous block of Length words.
func (e *Emitter) Allocate(sym *Symbol) {
	size := WordSize
	if sym.Kind == SymArray && !sym.IsParam {
		size = sym.Length * WordSize
	}
	if e.fn != nil {
		kind := SlotLocal
		if sym.IsParam {
			kind = SlotParam
			e.fn.Frame.Params++
		}
		sym.Loc = LocalAt(e.fn.Frame.alloc(sym.Name, kind, size))
	} else {
		sym.Loc = GlobalAt(e.nextGlobal)
		e.nextGlobal += size
	}
	sym.Allocated = true
}

// BeginFunction emits the FUNC instruction of sym and opens its frame.
// Parameters must be allocated next, followed by ReserveReturnSlot.
func (e *Emitter) BeginFunction(sym *Symbol) {
	entry := e.Emit(OpFunc, Imm(0), Imm(0), Operand{})
	e.fn = &Function{Name: sym.Name, Entry: entry, Frame: &Frame{}}
	sym.Entry = entry
	e.prog.Functions = append(e.prog.Functions, e.fn)
}

// ReserveReturnSlot places the return-value slot right after the parameters.
func (e *Emitter) ReserveReturnSlot() {
	e.fn.Frame.alloc("return", SlotReturn, WordSize)
}

// EndFunction emits the implicit return and backpatches the frame size.
func (e *Emitter) EndFunction() {
	e.Emit(OpReturn, Operand{}, Operand{}, Operand{})
	ins := &e.prog.Code[e.fn.Entry]
	ins.A1 = Imm(int64(e.fn.Frame.Size))
	ins.A2 = Imm(int64(e.fn.Frame.Params))
	e.fn.End = e.Here()
	e.fn = nil
}

// SetMain points the startup call at main's entry.
func (e *Emitter) SetMain(entry int) {
	e.Backpatch(0, entry)
}

// Finish resolves the halt jump and returns the program.
func (e *Emitter) Finish() *Program {
	e.Backpatch(1, e.Here())
	e.prog.GlobalSize = e.nextGlobal - DataBase
	return e.prog
}

// Program returns the instructions emitted so far.
func (e *Emitter) Program() *Program {
	return e.prog
}
