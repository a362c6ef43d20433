package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TACSyntaxError reports a malformed line of a three-address listing.
type TACSyntaxError struct {
	Line    int
	Message string
}

func (e *TACSyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseTAC reads a listing in the format Program.String writes. Function
// names are not part of the listing; the function main's startup call lands on
// is named main and the others f<entry>. Global array extents are not
// recoverable either, so GlobalSize only covers the addresses mentioned.
func ParseTAC(r io.Reader) (*Program, error) {
	prog := &Program{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ins, err := parseTACLine(line, len(prog.Code))
		if err != nil {
			return nil, &TACSyntaxError{Line: lineNo, Message: err.Error()}
		}
		prog.Code = append(prog.Code, ins)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	rebuildLayout(prog)
	return prog, nil
}

func parseTACLine(line string, want int) (Instruction, error) {
	idx, rest, ok := strings.Cut(line, "\t")
	if !ok {
		idx, rest, ok = strings.Cut(line, " ")
	}
	if !ok {
		return Instruction{}, fmt.Errorf("missing instruction after index")
	}
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return Instruction{}, fmt.Errorf("bad index %q", idx)
	}
	if n != want {
		return Instruction{}, fmt.Errorf("index %d out of sequence, want %d", n, want)
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return Instruction{}, fmt.Errorf("instruction must be parenthesized")
	}
	fields := strings.Split(rest[1:len(rest)-1], ",")
	if len(fields) != 4 {
		return Instruction{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	op, ok := opcodes[strings.TrimSpace(fields[0])]
	if !ok {
		return Instruction{}, fmt.Errorf("unknown opcode %q", strings.TrimSpace(fields[0]))
	}
	ins := Instruction{Op: op}
	label := labelOperand(op)
	for i := 1; i <= 3; i++ {
		o, err := parseOperand(strings.TrimSpace(fields[i]), i == label)
		if err != nil {
			return Instruction{}, err
		}
		*ins.operand(i) = o
	}
	return ins, nil
}

func parseOperand(s string, isLabel bool) (Operand, error) {
	if s == "" {
		return Operand{}, nil
	}
	if v, ok := strings.CutPrefix(s, "#"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("bad immediate %q", s)
		}
		return Imm(n), nil
	}
	indirect := false
	if v, ok := strings.CutPrefix(s, "@"); ok {
		s, indirect = v, true
	}
	var o Operand
	if v, ok := strings.CutPrefix(s, "fp+"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Operand{}, fmt.Errorf("bad frame offset %q", s)
		}
		o = LocalAt(n)
	} else {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Operand{}, fmt.Errorf("bad operand %q", s)
		}
		if isLabel {
			o = LabelAt(n)
		} else {
			o = GlobalAt(n)
		}
	}
	if indirect {
		if isLabel {
			return Operand{}, fmt.Errorf("indirect jump target %q", s)
		}
		o = o.Deref()
	}
	return o, nil
}

// rebuildLayout recovers the function table and global extent of a parsed
// listing.
func rebuildLayout(prog *Program) {
	mainEntry := -1
	if len(prog.Code) > 0 && prog.Code[0].Op == OpCall {
		mainEntry = int(prog.Code[0].A1.Value)
	}
	var fn *Function
	top := DataBase
	for i, ins := range prog.Code {
		if ins.Op == OpFunc {
			if fn != nil {
				fn.End = i
			}
			name := fmt.Sprintf("f%d", i)
			if i == mainEntry {
				name = "main"
			}
			fn = &Function{Name: name, Entry: i, Frame: &Frame{
				Size:   int(ins.A1.Value),
				Params: int(ins.A2.Value),
			}}
			prog.Functions = append(prog.Functions, fn)
		}
		for _, o := range []Operand{ins.A1, ins.A2, ins.A3} {
			if o.Kind == OperandGlobal && int(o.Value)+WordSize > top {
				top = int(o.Value) + WordSize
			}
		}
	}
	if fn != nil {
		fn.End = len(prog.Code)
	}
	prog.GlobalSize = top - DataBase
}
