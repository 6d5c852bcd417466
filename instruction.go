package splice

import (
	"slices"
	"strings"
)

// Instruction is one decoded operation of a method body.
//
// Op and Operand are never changed once an instruction is part of a
// sequence. Labels is the only mutable part: it is the set of jump targets
// bound to this instruction. A label has no position of its own, it is
// wherever the instruction carrying it currently is.
type Instruction struct {
	Op      Opcode
	Operand Operand
	Labels  []Label
}

// New returns an instruction without labels.
func New(op Opcode, operand ...Operand) *Instruction {
	ins := &Instruction{Op: op}
	if len(operand) > 0 {
		ins.Operand = operand[0]
	}
	return ins
}

// HasLabel reports whether l is attached to ins.
func (ins *Instruction) HasLabel(l Label) bool {
	_, found := slices.BinarySearch(ins.Labels, l)
	return found
}

// addLabel inserts l keeping the set sorted. It reports whether the label was
// added.
func (ins *Instruction) addLabel(l Label) bool {
	i, found := slices.BinarySearch(ins.Labels, l)
	if found {
		return false
	}
	ins.Labels = slices.Insert(ins.Labels, i, l)
	return true
}

// Clone returns a copy of ins carrying the same labels.
func (ins *Instruction) Clone() *Instruction {
	return &Instruction{
		Op:      ins.Op,
		Operand: ins.Operand,
		Labels:  slices.Clone(ins.Labels),
	}
}

// CloneWithLabels returns a copy of ins carrying only the given labels. It
// is used to duplicate an instruction into another control-flow path, where
// keeping the original labels would bind them twice.
func (ins *Instruction) CloneWithLabels(labels ...Label) *Instruction {
	c := &Instruction{Op: ins.Op, Operand: ins.Operand}
	for _, l := range labels {
		c.addLabel(l)
	}
	return c
}

// Equal reports structural equality: same opcode, equal operands and the
// same label set.
func (ins *Instruction) Equal(other *Instruction) bool {
	if ins == nil || other == nil {
		return ins == other
	}
	return ins.Op == other.Op &&
		operandsEqual(ins.Operand, other.Operand) &&
		slices.Equal(ins.Labels, other.Labels)
}

// Target returns the label referenced by a branch instruction.
func (ins *Instruction) Target() (Label, bool) {
	if !ins.Op.IsBranch() {
		return 0, false
	}
	ref, ok := ins.Operand.(LabelRef)
	return Label(ref), ok
}

func (ins *Instruction) String() string {
	var sb strings.Builder
	for _, l := range ins.Labels {
		sb.WriteString(l.String())
		sb.WriteString(": ")
	}
	sb.WriteString(ins.Op.String())
	if ins.Operand != nil {
		sb.WriteByte(' ')
		sb.WriteString(ins.Operand.String())
	}
	return sb.String()
}
