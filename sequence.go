package splice

import (
	"errors"
	"fmt"
	"strings"
)

// Sequence is the full instruction body of one method.
//
// Instructions are held by pointer: edits add new instructions but never
// replace existing ones, so labels attached to an instruction stay with it
// however far it moves.
type Sequence []*Instruction

// Clone returns a deep copy of seq. Patches are built on a clone so that the
// body handed out by the host stays untouched until commit.
func (seq Sequence) Clone() Sequence {
	if seq == nil {
		return nil
	}
	c := make(Sequence, len(seq))
	for i, ins := range seq {
		c[i] = ins.Clone()
	}
	return c
}

// Equal reports whether a and b are structurally equal.
func (seq Sequence) Equal(other Sequence) bool {
	if len(seq) != len(other) {
		return false
	}
	for i := range seq {
		if !seq[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// LabelIndex returns the index of the instruction carrying l.
func (seq Sequence) LabelIndex(l Label) (int, bool) {
	for i, ins := range seq {
		if ins.HasLabel(l) {
			return i, true
		}
	}
	return NotFound, false
}

// Insert places block immediately before seq[index], shifting seq[index:]
// later by len(block). index may equal len(seq) to append. Existing
// instructions are neither removed nor reordered.
//
// The returned sequence may share its backing array with seq.
func Insert(seq Sequence, index int, block ...*Instruction) (Sequence, error) {
	if index < 0 || index > len(seq) {
		return seq, fmt.Errorf("insert at %d of %d: %w", index, len(seq), ErrIndexOutOfRange)
	}
	if len(block) == 0 {
		return seq, nil
	}

	out := make(Sequence, 0, len(seq)+len(block))
	out = append(out, seq[:index]...)
	out = append(out, block...)
	out = append(out, seq[index:]...)
	return out, nil
}

// Verify checks label referential integrity: every branch refers to a label
// attached to exactly one instruction of seq, and no label is attached
// twice.
func Verify(seq Sequence) error {
	attached := map[Label]int{}
	errs := []error{}

	for i, ins := range seq {
		for _, l := range ins.Labels {
			if prev, ok := attached[l]; ok {
				errs = append(errs, fmt.Errorf("%v at %d and %d: %w", l, prev, i, ErrDuplicateLabel))
				continue
			}
			attached[l] = i
		}
	}

	for i, ins := range seq {
		if !ins.Op.IsBranch() {
			continue
		}
		l, ok := ins.Target()
		if !ok {
			errs = append(errs, fmt.Errorf("branch at %d has operand %v: %w", i, ins.Operand, ErrDanglingLabel))
			continue
		}
		if _, ok := attached[l]; !ok {
			errs = append(errs, fmt.Errorf("branch at %d to %v: %w", i, l, ErrDanglingLabel))
		}
	}

	return errors.Join(errs...)
}

func (seq Sequence) String() string {
	var sb strings.Builder
	for i, ins := range seq {
		fmt.Fprintf(&sb, "%04d\t%s\n", i, ins)
	}
	return sb.String()
}
