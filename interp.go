package main

import (
	"context"
	"fmt"
	"io"
)

const (
	// StackBase is the address of the first activation record. Globals live
	// far below it, from DataBase up.
	StackBase = 1 << 20

	DefaultMaxSteps = 50_000_000

	// ctxCheckInterval is how many steps run between cancellation checks.
	ctxCheckInterval = 1024
)

// InterpOptions configure Interpret.
type InterpOptions struct {
	// Out receives one "PRINT <value>" line per PRINT instruction.
	Out io.Writer
	// Trace, if set, receives every executed instruction.
	Trace io.Writer
	// MaxSteps bounds the number of executed instructions. Zero means
	// DefaultMaxSteps.
	MaxSteps int
}

type activation struct {
	ret    int
	result Operand
	fp, sp int64
	params int
}

// Machine executes a three-address program directly. Memory is a sparse map
// of words; unwritten words read as zero.
type Machine struct {
	prog   *Program
	mem    map[int64]int64
	PC     int
	fp, sp int64
	Steps  int
	Halted bool

	out   io.Writer
	trace io.Writer

	// args holds PARAM values not yet taken by a CALL. pending holds the
	// arguments of the call whose FUNC instruction runs next.
	args    []int64
	pending []int64
	calling bool
	frames  []activation
}

func NewMachine(prog *Program, opts InterpOptions) *Machine {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Machine{
		prog:  prog,
		mem:   make(map[int64]int64),
		fp:    StackBase,
		sp:    StackBase,
		out:   out,
		trace: opts.Trace,
	}
}

// Interpret runs prog until it halts, faults, exceeds the step limit or ctx
// is cancelled.
func Interpret(ctx context.Context, prog *Program, opts InterpOptions) error {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	m := NewMachine(prog, opts)
	for !m.Halted {
		if m.Steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return &RuntimeError{Kind: RuntimeTimeout, PC: m.PC, Err: err}
			}
		}
		if m.Steps >= maxSteps {
			return &RuntimeError{Kind: RuntimeStepLimit, PC: m.PC,
				Message: fmt.Sprintf("step limit of %d exceeded", maxSteps)}
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) fault(format string, args ...any) error {
	return &RuntimeError{Kind: RuntimeFault, PC: m.PC, Message: fmt.Sprintf(format, args...)}
}

// checkOperands rejects an instruction whose operands cannot serve their
// positions: a result or address operand must be a slot, a value operand a
// slot or an immediate.
func (m *Machine) checkOperands(ins Instruction) error {
	var values, slots []Operand
	switch ins.Op {
	case OpAdd, OpSub, OpMult, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpElem:
		values, slots = []Operand{ins.A1, ins.A2}, []Operand{ins.A3}
	case OpAssign:
		values, slots = []Operand{ins.A1}, []Operand{ins.A2}
	case OpAddr:
		slots = []Operand{ins.A1, ins.A3}
	case OpJpf, OpPrint, OpParam:
		values = []Operand{ins.A1}
	case OpCall:
		if !ins.A3.IsNone() {
			slots = []Operand{ins.A3}
		}
	case OpReturn:
		if !ins.A1.IsNone() {
			values = []Operand{ins.A1}
		}
	}
	for _, o := range values {
		if o.Kind != OperandImm && !o.IsSlot() {
			return m.fault("operand %q has no value", o.String())
		}
	}
	for _, o := range slots {
		if !o.IsSlot() {
			return m.fault("operand %q has no address", o.String())
		}
	}
	return nil
}

// address is the memory word an operand names. Step has already checked that
// o is a slot.
func (m *Machine) address(o Operand) int64 {
	var addr int64
	switch o.Kind {
	case OperandGlobal:
		addr = o.Value
	case OperandLocal:
		addr = m.fp + o.Value
	default:
		panic(fmt.Sprintf("error: operand %s has no address", o))
	}
	if o.Indirect {
		return m.mem[addr]
	}
	return addr
}

func (m *Machine) read(o Operand) int64 {
	if o.Kind == OperandImm {
		return o.Value
	}
	return m.mem[m.address(o)]
}

func (m *Machine) write(o Operand, v int64) {
	m.mem[m.address(o)] = v
}

func boolWord(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.PC == len(m.prog.Code) {
		m.Halted = true
		return nil
	}
	if m.PC < 0 || m.PC > len(m.prog.Code) {
		return m.fault("jump outside the program")
	}
	ins := m.prog.Code[m.PC]
	if m.trace != nil {
		fmt.Fprintf(m.trace, "%d\t%s\n", m.PC, ins)
	}
	if err := m.checkOperands(ins); err != nil {
		return err
	}
	m.Steps++
	next := m.PC + 1

	switch ins.Op {
	case OpAdd:
		m.write(ins.A3, m.read(ins.A1)+m.read(ins.A2))
	case OpSub:
		m.write(ins.A3, m.read(ins.A1)-m.read(ins.A2))
	case OpMult:
		m.write(ins.A3, m.read(ins.A1)*m.read(ins.A2))
	case OpDiv, OpMod:
		d := m.read(ins.A2)
		if d == 0 {
			return m.fault("division by zero")
		}
		if ins.Op == OpDiv {
			m.write(ins.A3, m.read(ins.A1)/d)
		} else {
			m.write(ins.A3, m.read(ins.A1)%d)
		}
	case OpEq:
		m.write(ins.A3, boolWord(m.read(ins.A1) == m.read(ins.A2)))
	case OpNe:
		m.write(ins.A3, boolWord(m.read(ins.A1) != m.read(ins.A2)))
	case OpLt:
		m.write(ins.A3, boolWord(m.read(ins.A1) < m.read(ins.A2)))
	case OpLe:
		m.write(ins.A3, boolWord(m.read(ins.A1) <= m.read(ins.A2)))
	case OpGt:
		m.write(ins.A3, boolWord(m.read(ins.A1) > m.read(ins.A2)))
	case OpGe:
		m.write(ins.A3, boolWord(m.read(ins.A1) >= m.read(ins.A2)))
	case OpAssign:
		m.write(ins.A2, m.read(ins.A1))
	case OpAddr:
		m.write(ins.A3, m.address(ins.A1))
	case OpElem:
		m.write(ins.A3, m.read(ins.A1)+m.read(ins.A2)*WordSize)
	case OpJpf:
		if m.read(ins.A1) == 0 {
			next = int(ins.A2.Value)
		}
	case OpJp:
		next = int(ins.A1.Value)
	case OpPrint:
		fmt.Fprintf(m.out, "PRINT %d\n", m.read(ins.A1))
	case OpParam:
		m.args = append(m.args, m.read(ins.A1))
	case OpCall:
		n := int(ins.A2.Value)
		if n > len(m.args) {
			return m.fault("call with %d arguments but %d pushed", n, len(m.args))
		}
		m.pending = append(m.pending[:0], m.args[len(m.args)-n:]...)
		m.args = m.args[:len(m.args)-n]
		m.frames = append(m.frames, activation{ret: next, result: ins.A3, fp: m.fp, sp: m.sp})
		m.calling = true
		next = int(ins.A1.Value)
	case OpFunc:
		if !m.calling {
			return m.fault("function entered without a call")
		}
		m.calling = false
		params := int(ins.A2.Value)
		if params != len(m.pending) {
			return m.fault("function takes %d arguments but got %d", params, len(m.pending))
		}
		m.fp = m.sp
		m.sp += ins.A1.Value
		for i, v := range m.pending {
			m.mem[m.fp+int64(i*WordSize)] = v
		}
		m.frames[len(m.frames)-1].params = params
	case OpReturn:
		if len(m.frames) == 0 {
			return m.fault("return outside a function")
		}
		top := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		var v int64
		if !ins.A1.IsNone() {
			v = m.read(ins.A1)
			m.mem[m.fp+int64(top.params*WordSize)] = v
		}
		m.fp, m.sp = top.fp, top.sp
		if !top.result.IsNone() {
			m.write(top.result, v)
		}
		next = top.ret
	default:
		return m.fault("unknown instruction %s", ins.Op)
	}

	if m.calling && ins.Op == OpCall {
		if next < 0 || next >= len(m.prog.Code) || m.prog.Code[next].Op != OpFunc {
			return m.fault("call target %d is not a function", next)
		}
	}
	m.PC = next
	return nil
}
