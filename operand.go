package splice

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operand is the payload of an instruction. The engine never interprets
// operands beyond equality, so backends may add their own implementations.
type Operand interface {
	Equal(Operand) bool
	String() string
}

// Int is an integer constant.
type Int int64

func (v Int) Equal(o Operand) bool {
	other, ok := o.(Int)
	return ok && other == v
}

func (v Int) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// Float is a floating point constant.
type Float float64

func (v Float) Equal(o Operand) bool {
	other, ok := o.(Float)
	return ok && (other == v || (math.IsNaN(float64(v)) && math.IsNaN(float64(other))))
}

func (v Float) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// String is a string constant.
type String string

func (v String) Equal(o Operand) bool {
	other, ok := o.(String)
	return ok && other == v
}

func (v String) String() string {
	return strconv.Quote(string(v))
}

// FieldRef names a field of a host type.
type FieldRef struct {
	Owner string
	Name  string
}

func (f FieldRef) Equal(o Operand) bool {
	other, ok := o.(FieldRef)
	return ok && other == f
}

func (f FieldRef) String() string {
	return f.Owner + "::" + f.Name
}

// MethodRef names a method of a host type along with enough of its
// signature to compute its stack effect.
type MethodRef struct {
	Owner    string
	Name     string
	Generics []string

	// Params is the number of declared parameters, not counting the
	// receiver.
	Params  int
	HasThis bool
	Returns bool
}

func (m MethodRef) Equal(o Operand) bool {
	other, ok := o.(MethodRef)
	if !ok {
		return false
	}
	if m.Owner != other.Owner || m.Name != other.Name ||
		m.Params != other.Params || m.HasThis != other.HasThis || m.Returns != other.Returns {
		return false
	}
	if len(m.Generics) != len(other.Generics) {
		return false
	}
	for i := range m.Generics {
		if m.Generics[i] != other.Generics[i] {
			return false
		}
	}
	return true
}

func (m MethodRef) String() string {
	var sb strings.Builder
	sb.WriteString(m.Owner)
	sb.WriteString("::")
	sb.WriteString(m.Name)
	if len(m.Generics) > 0 {
		sb.WriteByte('<')
		sb.WriteString(strings.Join(m.Generics, ","))
		sb.WriteByte('>')
	}
	return sb.String()
}

// LabelRef is the operand of a branch instruction.
type LabelRef Label

func (l LabelRef) Equal(o Operand) bool {
	other, ok := o.(LabelRef)
	return ok && other == l
}

func (l LabelRef) String() string {
	return Label(l).String()
}

// SlotKind distinguishes method arguments from locals.
type SlotKind uint8

const (
	ArgSlot SlotKind = iota
	LocalSlot
)

// Slot identifies an argument or local variable of the method being
// patched. Snippet builders take a Slot to know where a base value lives.
type Slot struct {
	Kind  SlotKind
	Index int
}

// Arg returns the slot of argument n. Argument 0 is the receiver of
// instance methods.
func Arg(n int) Slot {
	return Slot{Kind: ArgSlot, Index: n}
}

// Local returns the slot of local variable n.
func Local(n int) Slot {
	return Slot{Kind: LocalSlot, Index: n}
}

func (s Slot) Equal(o Operand) bool {
	other, ok := o.(Slot)
	return ok && other == s
}

func (s Slot) String() string {
	if s.Kind == ArgSlot {
		return fmt.Sprintf("arg%d", s.Index)
	}
	return fmt.Sprintf("loc%d", s.Index)
}

func operandsEqual(a, b Operand) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
