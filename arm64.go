package main

import (
	"fmt"
	"strings"
)

// Lowering to AArch64 (GNU assembler syntax, Linux calling convention).
//
// Every IR word becomes an 8-byte machine slot, so an IR offset o maps to
// o/WordSize*8. Frame slots are addressed from x29, globals from cm_data.
// Values live in memory between IR instructions; the scratch registers x9-x15
// hold them only while one instruction is lowered, and no instruction needs
// more than four of them.
//
// Arguments are pushed by PARAM in 16-byte cells and popped by the caller
// after the call. The callee copies them into its parameter slots.

const (
	machWord = 8
	// maxScaledOffset is the largest offset a 64-bit ldr/str can encode.
	maxScaledOffset = 4095 * machWord
)

var scratchRegisters = []string{"x9", "x10", "x11", "x12", "x13", "x14", "x15"}

type scratchExhausted struct {
	pc int
}

func machOffset(irOffset int64) int64 {
	return irOffset / WordSize * machWord
}

// frameBytes is the machine size of an IR frame, 16-byte aligned.
func frameBytes(irSize int64) int64 {
	n := machOffset(irSize + WordSize - 1)
	return (n + 15) &^ 15
}

type lowering struct {
	prog   *Program
	out    strings.Builder
	labels map[int]bool
	pc     int
	fn     *Function
	frame  int64
	free   []string
}

// Lower translates a complete program into assembly text. It fails only on
// malformed programs, with errors wrapping ErrInternal.
func Lower(prog *Program) (asm string, err error) {
	lw := &lowering{prog: prog, labels: make(map[int]bool)}
	if err := lw.resolveLabels(); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			ex, ok := r.(scratchExhausted)
			if !ok {
				panic(r)
			}
			asm = ""
			err = fmt.Errorf("%w: scratch registers exhausted at instruction %d", ErrInternal, ex.pc)
		}
	}()
	if err := lw.lower(); err != nil {
		return "", err
	}
	return lw.out.String(), nil
}

// resolveLabels checks every jump and call target and records which
// instructions need a label.
func (lw *lowering) resolveLabels() error {
	n := len(lw.prog.Code)
	for i, ins := range lw.prog.Code {
		k := labelOperand(ins.Op)
		if k < 0 {
			continue
		}
		target := int(ins.operand(k).Value)
		if target < 0 || target > n {
			return fmt.Errorf("%w: instruction %d jumps to %d", ErrUnresolvedLabel, i, target)
		}
		if ins.Op == OpCall && (target == n || lw.prog.Code[target].Op != OpFunc) {
			return fmt.Errorf("%w: instruction %d calls %d, which is not a function", ErrUnresolvedLabel, i, target)
		}
		lw.labels[target] = true
	}
	return nil
}

func (lw *lowering) line(format string, args ...any) {
	fmt.Fprintf(&lw.out, "\t"+format+"\n", args...)
}

func (lw *lowering) label(name string) {
	lw.out.WriteString(name + ":\n")
}

func (lw *lowering) reg() string {
	if len(lw.free) == 0 {
		panic(scratchExhausted{pc: lw.pc})
	}
	r := lw.free[0]
	lw.free = lw.free[1:]
	return r
}

func (lw *lowering) functionName(entry int) string {
	fn := lw.prog.FunctionAt(entry)
	if fn == nil {
		return fmt.Sprintf("cm_f%d", entry)
	}
	return "cm_" + fn.Name
}

func (lw *lowering) lower() error {
	lw.line(".text")
	lw.line(".globl main")
	lw.line(".type main, %%function")
	lw.label("main")
	lw.line("stp x29, x30, [sp, #-16]!")
	lw.line("mov x29, sp")

	for lw.pc = 0; lw.pc < len(lw.prog.Code); lw.pc++ {
		ins := lw.prog.Code[lw.pc]
		if ins.Op == OpFunc {
			if err := lw.enterFunction(); err != nil {
				return err
			}
		}
		if lw.labels[lw.pc] {
			lw.label(fmt.Sprintf(".L%d", lw.pc))
		}
		lw.line("// %d\t%s", lw.pc, ins)
		lw.free = append(lw.free[:0], scratchRegisters...)
		if err := lw.instruction(ins); err != nil {
			return err
		}
		if lw.fn != nil && lw.pc+1 == lw.fn.End {
			lw.leaveFunction()
		}
	}

	lw.label(fmt.Sprintf(".L%d", len(lw.prog.Code)))
	lw.line("mov w0, #0")
	lw.line("ldp x29, x30, [sp], #16")
	lw.line("ret")

	size := machOffset(int64(lw.prog.GlobalSize))
	if size == 0 {
		size = machWord
	}
	lw.out.WriteString("\n")
	lw.line(".bss")
	lw.line(".balign 16")
	lw.label("cm_data")
	lw.line(".zero %d", size)
	lw.out.WriteString("\n")
	lw.line(".section .rodata")
	lw.label(".Lfmt")
	lw.line(".asciz \"PRINT %%ld\\n\"")
	return nil
}

func (lw *lowering) enterFunction() error {
	fn := lw.prog.FunctionAt(lw.pc)
	if fn == nil {
		return fmt.Errorf("%w: FUNC at %d has no function", ErrInternal, lw.pc)
	}
	lw.fn = fn
	lw.frame = frameBytes(lw.prog.Code[lw.pc].A1.Value)
	lw.out.WriteString("\n")
	lw.label("cm_" + fn.Name)
	return nil
}

func (lw *lowering) leaveFunction() {
	lw.label(fmt.Sprintf(".Lret_%d", lw.fn.Entry))
	lw.line("mov sp, x29")
	lw.addImm("sp", "sp", lw.frame, "x9")
	lw.line("ldp x29, x30, [sp], #16")
	lw.line("ret")
	lw.fn = nil
}

// addImm emits dst = src + n for any non-negative n. An immediate too large
// for add is loaded into t first; t may be dst.
func (lw *lowering) addImm(dst, src string, n int64, t string) {
	if n < 4096 {
		lw.line("add %s, %s, #%d", dst, src, n)
		return
	}
	lw.line("ldr %s, =%d", t, n)
	lw.line("add %s, %s, %s", dst, src, t)
}

// frameAddr returns the memory operand of frame offset off. Offsets beyond
// the scaled range are computed into t.
func (lw *lowering) frameAddr(off int64, t string) string {
	if off <= maxScaledOffset {
		return fmt.Sprintf("[x29, #%d]", off)
	}
	lw.addImm(t, "x29", off, t)
	return "[" + t + "]"
}

// slot returns the memory operand a non-indirect slot names, using t for any
// address arithmetic.
func (lw *lowering) slot(o Operand, t string) (string, error) {
	switch o.Kind {
	case OperandLocal:
		if lw.fn == nil {
			return "", fmt.Errorf("%w: frame slot %s outside a function at %d", ErrInternal, o, lw.pc)
		}
		return lw.frameAddr(machOffset(o.Value), t), nil
	case OperandGlobal:
		lw.globalAddr(t, o.Value)
		return "[" + t + "]", nil
	default:
		return "", fmt.Errorf("%w: operand %s is not a slot at %d", ErrInternal, o, lw.pc)
	}
}

func (lw *lowering) globalAddr(dst string, addr int64) {
	sym := "cm_data"
	if off := machOffset(addr - DataBase); off != 0 {
		sym = fmt.Sprintf("cm_data+%d", off)
	}
	lw.line("adrp %s, %s", dst, sym)
	lw.line("add %s, %s, :lo12:%s", dst, dst, sym)
}

// mem returns the memory operand o names, following one indirection. Every
// address computed on the way lands in t, so one register suffices.
func (lw *lowering) mem(o Operand, t string) (string, error) {
	direct := o
	direct.Indirect = false
	m, err := lw.slot(direct, t)
	if err != nil || !o.Indirect {
		return m, err
	}
	lw.line("ldr %s, %s", t, m)
	return "[" + t + "]", nil
}

// load brings the value of o into a fresh scratch register.
func (lw *lowering) load(o Operand) (string, error) {
	r := lw.reg()
	if err := lw.loadInto(r, o); err != nil {
		return "", err
	}
	return r, nil
}

func (lw *lowering) loadInto(r string, o Operand) error {
	if o.Kind == OperandImm {
		if o.Value >= 0 && o.Value < 1<<16 {
			lw.line("mov %s, #%d", r, o.Value)
		} else {
			lw.line("ldr %s, =%d", r, o.Value)
		}
		return nil
	}
	m, err := lw.mem(o, r)
	if err != nil {
		return err
	}
	lw.line("ldr %s, %s", r, m)
	return nil
}

func (lw *lowering) store(r string, o Operand) error {
	m, err := lw.mem(o, lw.reg())
	if err != nil {
		return err
	}
	lw.line("str %s, %s", r, m)
	return nil
}

func (lw *lowering) binary(ins Instruction, emit func(dst, a, b string)) error {
	a, err := lw.load(ins.A1)
	if err != nil {
		return err
	}
	b, err := lw.load(ins.A2)
	if err != nil {
		return err
	}
	r := lw.reg()
	emit(r, a, b)
	return lw.store(r, ins.A3)
}

var conditionCodes = map[Opcode]string{
	OpEq: "eq",
	OpNe: "ne",
	OpLt: "lt",
	OpLe: "le",
	OpGt: "gt",
	OpGe: "ge",
}

func (lw *lowering) target(o Operand) string {
	return fmt.Sprintf(".L%d", o.Value)
}

func (lw *lowering) instruction(ins Instruction) error {
	switch ins.Op {
	case OpAdd:
		return lw.binary(ins, func(d, a, b string) { lw.line("add %s, %s, %s", d, a, b) })
	case OpSub:
		return lw.binary(ins, func(d, a, b string) { lw.line("sub %s, %s, %s", d, a, b) })
	case OpMult:
		return lw.binary(ins, func(d, a, b string) { lw.line("mul %s, %s, %s", d, a, b) })
	case OpDiv:
		return lw.binary(ins, func(d, a, b string) { lw.line("sdiv %s, %s, %s", d, a, b) })
	case OpMod:
		return lw.binary(ins, func(d, a, b string) {
			lw.line("sdiv %s, %s, %s", d, a, b)
			lw.line("msub %s, %s, %s, %s", d, d, b, a)
		})
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		cc := conditionCodes[ins.Op]
		return lw.binary(ins, func(d, a, b string) {
			lw.line("cmp %s, %s", a, b)
			lw.line("cset %s, %s", d, cc)
		})
	case OpAssign:
		r, err := lw.load(ins.A1)
		if err != nil {
			return err
		}
		return lw.store(r, ins.A2)
	case OpAddr:
		if ins.A1.Indirect {
			return fmt.Errorf("%w: address of indirect operand at %d", ErrInternal, lw.pc)
		}
		r := lw.reg()
		switch ins.A1.Kind {
		case OperandLocal:
			lw.addImm(r, "x29", machOffset(ins.A1.Value), r)
		case OperandGlobal:
			lw.globalAddr(r, ins.A1.Value)
		default:
			return fmt.Errorf("%w: address of %s at %d", ErrInternal, ins.A1, lw.pc)
		}
		return lw.store(r, ins.A3)
	case OpElem:
		return lw.binary(ins, func(d, a, b string) { lw.line("add %s, %s, %s, lsl #3", d, a, b) })
	case OpJpf:
		r, err := lw.load(ins.A1)
		if err != nil {
			return err
		}
		lw.line("cbz %s, %s", r, lw.target(ins.A2))
	case OpJp:
		lw.line("b %s", lw.target(ins.A1))
	case OpPrint:
		if err := lw.loadInto("x1", ins.A1); err != nil {
			return err
		}
		lw.line("adrp x0, .Lfmt")
		lw.line("add x0, x0, :lo12:.Lfmt")
		lw.line("bl printf")
	case OpParam:
		r, err := lw.load(ins.A1)
		if err != nil {
			return err
		}
		lw.line("str %s, [sp, #-16]!", r)
	case OpCall:
		lw.line("bl %s", lw.functionName(int(ins.A1.Value)))
		if n := ins.A2.Value; n > 0 {
			lw.addImm("sp", "sp", n*16, lw.reg())
		}
		if !ins.A3.IsNone() {
			return lw.store("x0", ins.A3)
		}
	case OpFunc:
		lw.line("stp x29, x30, [sp, #-16]!")
		if lw.frame < 4096 {
			lw.line("sub sp, sp, #%d", lw.frame)
		} else {
			t := lw.reg()
			lw.line("ldr %s, =%d", t, lw.frame)
			lw.line("sub sp, sp, %s", t)
		}
		lw.line("mov x29, sp")
		params := ins.A2.Value
		for i := int64(0); i < params; i++ {
			lw.free = append(lw.free[:0], scratchRegisters...)
			r := lw.reg()
			lw.line("ldr %s, %s", r, lw.frameAddr(lw.frame+16+(params-1-i)*16, r))
			lw.line("str %s, %s", r, lw.frameAddr(machOffset(i*WordSize), lw.reg()))
		}
	case OpReturn:
		if lw.fn == nil {
			return fmt.Errorf("%w: RETURN outside a function at %d", ErrInternal, lw.pc)
		}
		if !ins.A1.IsNone() {
			if err := lw.loadInto("x0", ins.A1); err != nil {
				return err
			}
			ret := int64(lw.fn.Frame.ReturnOffset())
			lw.line("str x0, %s", lw.frameAddr(machOffset(ret), lw.reg()))
		}
		lw.line("b .Lret_%d", lw.fn.Entry)
	default:
		return fmt.Errorf("%w: unknown instruction %s at %d", ErrInternal, ins.Op, lw.pc)
	}
	return nil
}
