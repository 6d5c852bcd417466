package splice

import (
	"fmt"
	"strconv"
)

// Label is an opaque jump target. It only has a position while it is
// attached to an instruction.
type Label uint32

func (l Label) String() string {
	return "L" + strconv.FormatUint(uint64(l), 10)
}

// Labeler mints labels that don't collide with the ones already used by a
// sequence.
type Labeler struct {
	next Label
}

// NewLabeler returns a Labeler whose labels are distinct from every label
// attached to, or referenced by, the instructions of seq.
func NewLabeler(seq Sequence) *Labeler {
	var next Label
	for _, ins := range seq {
		for _, l := range ins.Labels {
			if l >= next {
				next = l + 1
			}
		}
		if ref, ok := ins.Operand.(LabelRef); ok && Label(ref) >= next {
			next = Label(ref) + 1
		}
	}
	return &Labeler{next: next}
}

// Mint allocates a fresh, unattached label.
func (lb *Labeler) Mint() Label {
	l := lb.next
	lb.next++
	return l
}

// Attach binds l to seq[index]. Attaching a label twice to the same
// instruction is a no-op.
func (lb *Labeler) Attach(seq Sequence, index int, l Label) error {
	if index < 0 || index >= len(seq) {
		return fmt.Errorf("attach %v at %d of %d: %w", l, index, len(seq), ErrIndexOutOfRange)
	}
	seq[index].addLabel(l)
	return nil
}

// Branch builds a branch instruction referring to l. Nothing is attached;
// the caller must make sure l is attached before the branch is committed.
func (lb *Labeler) Branch(op Opcode, l Label) (*Instruction, error) {
	if !op.IsBranch() {
		return nil, fmt.Errorf("%v: %w", op, ErrNotBranch)
	}
	return New(op, LabelRef(l)), nil
}

// MustBranch is like Branch but panics if op is not a branch. It's meant for
// injectors whose opcodes are constants.
func (lb *Labeler) MustBranch(op Opcode, l Label) *Instruction {
	ins, err := lb.Branch(op, l)
	if err != nil {
		panic(err)
	}
	return ins
}
