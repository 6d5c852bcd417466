package native

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/pboyd/splice"
)

const (
	opcodeCALLrel = 0xe8
	opcodeJMPrel  = 0xe9
	opcodeINT3    = 0xcc
	opcodeJccRel  = 0x80 // second byte of 0F 8x
	opcodeTwoByte = 0x0f

	rel32Size = 4
	jmpSize   = 1 + rel32Size
	jccSize   = 2 + rel32Size
)

// Instruction kinds of decoded amd64 code. Conditional jumps get one opcode
// per condition code, in encoding order (JO = 0 ... JG = 15).
var (
	Jmp     = splice.DefineOpcode("x86.jmp", splice.FlowBranch)
	TailJmp = splice.DefineOpcode("x86.jmp.far", splice.FlowReturn)
	Call    = splice.DefineOpcode("x86.call", splice.FlowCall)
	Ret     = splice.DefineOpcode("x86.ret", splice.FlowReturn)
	Code    = splice.DefineOpcode("x86.code", splice.FlowNext)

	Jcc [16]splice.Opcode
)

var conditions = [16]x86asm.Op{
	x86asm.JO, x86asm.JNO, x86asm.JB, x86asm.JAE,
	x86asm.JE, x86asm.JNE, x86asm.JBE, x86asm.JA,
	x86asm.JS, x86asm.JNS, x86asm.JP, x86asm.JNP,
	x86asm.JL, x86asm.JGE, x86asm.JLE, x86asm.JG,
}

var conditionCodes = map[x86asm.Op]byte{}

func init() {
	for cc, op := range conditions {
		Jcc[cc] = splice.DefineOpcode("x86."+strings.ToLower(op.String()), splice.FlowCondBranch)
		conditionCodes[op] = byte(cc)
	}
}

// conditionOf returns the condition code of a Jcc opcode.
func conditionOf(op splice.Opcode) (byte, bool) {
	for cc, jcc := range Jcc {
		if jcc == op {
			return byte(cc), true
		}
	}
	return 0, false
}

// Addr is the operand of calls and far jumps: an absolute address outside
// the function.
type Addr uintptr

func (a Addr) Equal(o splice.Operand) bool {
	other, ok := o.(Addr)
	return ok && other == a
}

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uintptr(a))
}

// Machine is an instruction copied as is, except for a RIP-relative
// displacement which is recomputed for the new address.
type Machine struct {
	Bytes []byte

	// RelOff is the offset of the 32-bit displacement in Bytes, or -1.
	// Target is the absolute address it refers to.
	RelOff int
	Target uintptr
}

// Raw returns a Machine operand for position independent code.
func Raw(b ...byte) Machine {
	return Machine{Bytes: b, RelOff: -1}
}

func (m Machine) Equal(o splice.Operand) bool {
	other, ok := o.(Machine)
	return ok && m.RelOff == other.RelOff && m.Target == other.Target && bytes.Equal(m.Bytes, other.Bytes)
}

func (m Machine) String() string {
	s := hex.EncodeToString(m.Bytes)
	if inst, err := x86asm.Decode(m.Bytes, 64); err == nil {
		s += " " + inst.String()
	}
	return s
}

// Decode turns the amd64 machine code of one function into a sequence.
// base is the address code executes from. Trailing INT3 padding is dropped.
//
// Relative branches inside the function become branches to labels attached
// to their target instructions. Calls and jumps out of the function keep
// their absolute destination.
func Decode(code []byte, base uintptr) (splice.Sequence, error) {
	type decoded struct {
		inst   x86asm.Inst
		offset int
	}

	var insts []decoded
	for off := 0; off < len(code); {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return nil, fmt.Errorf("decode error at offset %d: %w", off, err)
		}
		if inst.Op == 0 {
			return nil, fmt.Errorf("decode error at offset %d: invalid instruction % x", off, code[off:min(off+max(inst.Len, 1), len(code))])
		}
		insts = append(insts, decoded{inst: inst, offset: off})
		off += inst.Len
	}

	// Padding is whole INT3 instructions after the last real one.
	for len(insts) > 0 {
		last := insts[len(insts)-1]
		if last.inst.Len != 1 || code[last.offset] != opcodeINT3 {
			break
		}
		insts = insts[:len(insts)-1]
	}

	index := make(map[int]int, len(insts))
	for i, d := range insts {
		index[d.offset] = i
	}

	seq := make(splice.Sequence, len(insts))
	labels := map[int]splice.Label{}
	var next splice.Label

	labelFor := func(targetIndex int) splice.Label {
		l, ok := labels[targetIndex]
		if !ok {
			l = next
			next++
			labels[targetIndex] = l
		}
		return l
	}

	for i, d := range insts {
		inst := d.inst
		raw := code[d.offset : d.offset+inst.Len]
		nextPC := base + uintptr(d.offset+inst.Len)

		rel, isRel := inst.Args[0].(x86asm.Rel)
		_, isCond := conditionCodes[inst.Op]

		switch {
		case isRel && (inst.Op == x86asm.JMP || isCond):
			target := d.offset + inst.Len + int(rel)
			ti, inside := index[target]
			switch {
			case inside && isCond:
				seq[i] = splice.New(Jcc[conditionCodes[inst.Op]], splice.LabelRef(labelFor(ti)))
			case inside:
				seq[i] = splice.New(Jmp, splice.LabelRef(labelFor(ti)))
			case inst.Op == x86asm.JMP:
				seq[i] = splice.New(TailJmp, Addr(nextPC+uintptr(int64(rel))))
			default:
				return nil, fmt.Errorf("offset %d: conditional jump out of the function is not supported", d.offset)
			}

		case isRel && inst.Op == x86asm.CALL:
			seq[i] = splice.New(Call, Addr(nextPC+uintptr(int64(rel))))

		case isRel:
			// JCXZ, LOOP and friends only have a rel8 form.
			return nil, fmt.Errorf("offset %d: %v has no rel32 form", d.offset, inst.Op)

		case inst.Op == x86asm.RET:
			seq[i] = splice.New(Ret, Raw(copyBytes(raw)...))

		default:
			m := Raw(copyBytes(raw)...)
			if off, ok := ripDisplacement(inst); ok {
				disp := int32(binary.LittleEndian.Uint32(raw[off:]))
				m.RelOff = off
				m.Target = nextPC + uintptr(int64(disp))
			}
			seq[i] = splice.New(Code, m)
		}
	}

	lb := splice.NewLabeler(nil)
	for ti, l := range labels {
		if err := lb.Attach(seq, ti, l); err != nil {
			return nil, err
		}
	}
	return seq, nil
}

// ripDisplacement returns the offset of the disp32 of a RIP-relative memory
// operand.
func ripDisplacement(inst x86asm.Inst) (int, bool) {
	hasRIP := false
	for _, arg := range inst.Args {
		if mem, ok := arg.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			hasRIP = true
			break
		}
	}
	if !hasRIP {
		return 0, false
	}
	if inst.PCRel == rel32Size {
		return inst.PCRelOff, true
	}
	// The displacement is the last field unless an immediate follows it.
	imm := 0
	for _, arg := range inst.Args {
		if _, ok := arg.(x86asm.Imm); ok {
			imm = inst.DataSize / 8
			if imm > 4 {
				imm = 4
			}
		}
	}
	return inst.Len - rel32Size - imm, true
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

// size returns the encoded size of ins.
func size(ins *splice.Instruction) (int, error) {
	switch ins.Op {
	case Jmp, TailJmp, Call:
		return jmpSize, nil
	}
	if _, ok := conditionOf(ins.Op); ok {
		return jccSize, nil
	}
	m, ok := ins.Operand.(Machine)
	if !ok {
		return 0, fmt.Errorf("%v: not an amd64 instruction", ins)
	}
	return len(m.Bytes), nil
}

// Layout returns the offset of each instruction of seq and the total size
// of the code, without padding. Every branch is encoded in its rel32 form,
// so the layout doesn't depend on the base address.
func Layout(seq splice.Sequence) ([]int, int, error) {
	offsets := make([]int, len(seq))
	total := 0
	for i, ins := range seq {
		n, err := size(ins)
		if err != nil {
			return nil, 0, fmt.Errorf("instruction %d: %w", i, err)
		}
		offsets[i] = total
		total += n
	}
	return offsets, total, nil
}

// AssembledSize is the size of the code Assemble produces for seq,
// including padding.
func AssembledSize(seq splice.Sequence) (int, error) {
	_, total, err := Layout(seq)
	return pad16(total), err
}

func pad16(n int) int {
	return (n + 0xf) &^ 0xf
}

var errOutOfRange = errors.New("relative address out of rel32 range")

func rel32(from, to int64) (uint32, error) {
	d := to - from
	if d < math.MinInt32 || d > math.MaxInt32 {
		return 0, errOutOfRange
	}
	return uint32(int32(d)), nil
}

// Assemble encodes seq for execution at base into dest, which must be at
// least AssembledSize bytes. Branches are resolved from the labels attached
// to the instructions; the result is padded with INT3 to 16 bytes.
func Assemble(seq splice.Sequence, base uintptr, dest []byte) ([]byte, error) {
	if err := splice.Verify(seq); err != nil {
		return nil, err
	}

	offsets, total, err := Layout(seq)
	if err != nil {
		return nil, err
	}
	n := pad16(total)
	if len(dest) < n {
		return nil, fmt.Errorf("need %d bytes, have %d", n, len(dest))
	}
	dest = dest[:n]

	labelOffsets := map[splice.Label]int{}
	for i, ins := range seq {
		for _, l := range ins.Labels {
			labelOffsets[l] = offsets[i]
		}
	}

	for i, ins := range seq {
		off := offsets[i]
		pc := int64(base) + int64(off)
		buf := dest[off:]

		switch ins.Op {
		case Jmp:
			l, _ := ins.Target()
			buf[0] = opcodeJMPrel
			rel, _ := rel32(int64(off+jmpSize), int64(labelOffsets[l]))
			binary.LittleEndian.PutUint32(buf[1:], rel)
			continue

		case TailJmp, Call:
			addr, ok := ins.Operand.(Addr)
			if !ok {
				return nil, fmt.Errorf("instruction %d: %v needs an address operand", i, ins.Op)
			}
			rel, err := rel32(pc+jmpSize, int64(addr))
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			buf[0] = opcodeJMPrel
			if ins.Op == Call {
				buf[0] = opcodeCALLrel
			}
			binary.LittleEndian.PutUint32(buf[1:], rel)
			continue
		}

		if cc, ok := conditionOf(ins.Op); ok {
			l, _ := ins.Target()
			buf[0] = opcodeTwoByte
			buf[1] = opcodeJccRel | cc
			rel, _ := rel32(int64(off+jccSize), int64(labelOffsets[l]))
			binary.LittleEndian.PutUint32(buf[2:], rel)
			continue
		}

		m := ins.Operand.(Machine)
		copy(buf, m.Bytes)
		if m.RelOff >= 0 {
			rel, err := rel32(pc+int64(len(m.Bytes)), int64(m.Target))
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			binary.LittleEndian.PutUint32(buf[m.RelOff:], rel)
		}
	}

	for i := total; i < n; i++ {
		dest[i] = opcodeINT3
	}
	return dest, nil
}

// Disassemble lists code that executes from base.
func Disassemble(code []byte, base uintptr) (string, error) {
	var out []byte
	for off := 0; off < len(code); {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return "", fmt.Errorf("decode error at offset %d: %w", off, err)
		}
		out = fmt.Appendf(out, "0x%08x\t%-20s\t%s\n", base+uintptr(off), hex.EncodeToString(code[off:off+inst.Len]), inst.String())
		off += inst.Len
	}
	return string(out), nil
}
