package splice

import (
	"fmt"
	"math"
	"strings"
)

// NotFound is the index reported when no instruction matches.
const NotFound = -1

// Predicate decides whether an instruction is an anchor. Implementations
// must not modify the instruction.
type Predicate interface {
	Match(ins *Instruction, index int) bool
}

// PredicateFunc adapts a function to a Predicate. Prefer the declarative
// matchers below; a PredicateFunc can't be printed or compared.
type PredicateFunc func(ins *Instruction, index int) bool

func (f PredicateFunc) Match(ins *Instruction, index int) bool {
	return f(ins, index)
}

// Find returns the smallest index whose instruction satisfies pred, or
// NotFound and false.
func Find(seq Sequence, pred Predicate) (int, bool) {
	for i, ins := range seq {
		if pred.Match(ins, i) {
			return i, true
		}
	}
	return NotFound, false
}

// OpMatcher matches an opcode and, optionally, an operand.
type OpMatcher struct {
	Op      Opcode
	Operand Operand
}

// OpIs matches any instruction with opcode op.
func OpIs(op Opcode) OpMatcher {
	return OpMatcher{Op: op}
}

// WithOperand narrows m to instructions whose operand equals operand.
func (m OpMatcher) WithOperand(operand Operand) OpMatcher {
	m.Operand = operand
	return m
}

func (m OpMatcher) Match(ins *Instruction, _ int) bool {
	if ins.Op != m.Op {
		return false
	}
	return m.Operand == nil || operandsEqual(ins.Operand, m.Operand)
}

func (m OpMatcher) String() string {
	if m.Operand == nil {
		return m.Op.String()
	}
	return m.Op.String() + " " + m.Operand.String()
}

// FloatMatcher matches an opcode whose operand is a float within Tolerance
// of Value.
type FloatMatcher struct {
	Op        Opcode
	Value     float64
	Tolerance float64
}

// FloatNear matches op with a Float operand close to v.
func FloatNear(op Opcode, v, tolerance float64) FloatMatcher {
	return FloatMatcher{Op: op, Value: v, Tolerance: tolerance}
}

func (m FloatMatcher) Match(ins *Instruction, _ int) bool {
	if ins.Op != m.Op {
		return false
	}
	f, ok := ins.Operand.(Float)
	return ok && math.Abs(float64(f)-m.Value) < m.Tolerance
}

func (m FloatMatcher) String() string {
	return fmt.Sprintf("%v ~%g", m.Op, m.Value)
}

// AllOf matches when every predicate matches.
type AllOf []Predicate

func (p AllOf) Match(ins *Instruction, index int) bool {
	for _, pred := range p {
		if !pred.Match(ins, index) {
			return false
		}
	}
	return true
}

func (p AllOf) String() string {
	return joinPredicates("all", p)
}

// AnyOf matches when at least one predicate matches.
type AnyOf []Predicate

func (p AnyOf) Match(ins *Instruction, index int) bool {
	for _, pred := range p {
		if pred.Match(ins, index) {
			return true
		}
	}
	return false
}

func (p AnyOf) String() string {
	return joinPredicates("any", p)
}

// AtIndex matches the instruction at a fixed index. It's only appropriate
// for compiler-generated bodies whose prefix is stable, such as the head of
// a lambda.
type AtIndex int

func (a AtIndex) Match(_ *Instruction, index int) bool {
	return index == int(a)
}

func (a AtIndex) String() string {
	return fmt.Sprintf("index %d", int(a))
}

func joinPredicates(name string, preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = fmt.Sprint(p)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
