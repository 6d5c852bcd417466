package splice

import "fmt"

// Snippet is an ordered block of instructions built for injection.
// Snippets compose by concatenation.
type Snippet []*Instruction

// Accessor is one step of a dereference chain: a field load or a call that
// takes the value on top of the stack and leaves another.
type Accessor struct {
	Op      Opcode
	Operand Operand
}

// Field loads a field of the value on top of the stack.
func Field(owner, name string) Accessor {
	return Accessor{Op: Ldfld, Operand: FieldRef{Owner: owner, Name: name}}
}

// Property calls the getter of an instance property.
func Property(owner, name string) Accessor {
	return Accessor{Op: Callvirt, Operand: MethodRef{
		Owner:   owner,
		Name:    "get_" + name,
		HasThis: true,
		Returns: true,
	}}
}

// Static calls a static method taking the value on top of the stack as its
// only argument.
func Static(m MethodRef) Accessor {
	return Accessor{Op: Call, Operand: m}
}

// Virtual calls an instance method with no arguments.
func Virtual(m MethodRef) Accessor {
	return Accessor{Op: Callvirt, Operand: m}
}

func (a Accessor) instruction() *Instruction {
	return New(a.Op, a.Operand)
}

var (
	argOpcodes   = [...]Opcode{Ldarg0, Ldarg1, Ldarg2, Ldarg3}
	localOpcodes = [...]Opcode{Ldloc0, Ldloc1, Ldloc2, Ldloc3}
	storeOpcodes = [...]Opcode{Stloc0, Stloc1, Stloc2, Stloc3}
)

// Load returns the instruction that pushes the value held in s. The short
// forms are used for the first four slots.
func Load(s Slot) *Instruction {
	switch s.Kind {
	case ArgSlot:
		if s.Index >= 0 && s.Index < len(argOpcodes) {
			return New(argOpcodes[s.Index])
		}
		return New(LdargS, Int(s.Index))
	default:
		if s.Index >= 0 && s.Index < len(localOpcodes) {
			return New(localOpcodes[s.Index])
		}
		return New(LdlocS, Int(s.Index))
	}
}

// Store returns the instruction that pops the top of the stack into local n.
func Store(n int) *Instruction {
	if n >= 0 && n < len(storeOpcodes) {
		return New(storeOpcodes[n])
	}
	return New(StlocS, Int(n))
}

// Chain loads base and applies each accessor in turn.
func Chain(base Slot, accessors ...Accessor) Snippet {
	s := make(Snippet, 0, len(accessors)+1)
	s = append(s, Load(base))
	return s.Then(accessors...)
}

// Then appends accessors applied to the value currently on top of the stack.
func (s Snippet) Then(accessors ...Accessor) Snippet {
	for _, a := range accessors {
		s = append(s, a.instruction())
	}
	return s
}

// CapabilityCheck leaves a boolean on the stack: the value in base
// dereferenced through accessors, the last of which yields the capability
// flag.
func CapabilityCheck(base Slot, accessors ...Accessor) Snippet {
	return Chain(base, accessors...)
}

// RandomPick loads a container through accessors and calls pick on it,
// leaving a single element on the stack.
func RandomPick(base Slot, pick MethodRef, accessors ...Accessor) Snippet {
	return Chain(base, accessors...).Then(Static(pick))
}

// Concat joins snippets in order.
func Concat(snippets ...Snippet) Snippet {
	n := 0
	for _, s := range snippets {
		n += len(s)
	}
	out := make(Snippet, 0, n)
	for _, s := range snippets {
		out = append(out, s...)
	}
	return out
}

// Append returns s followed by instructions.
func (s Snippet) Append(instructions ...*Instruction) Snippet {
	return append(s, instructions...)
}

// StackDelta returns the net number of values the snippet leaves on the
// evaluation stack when executed straight through. It fails if the snippet
// would pop a value it did not push, or if an instruction's effect is
// unknown.
func (s Snippet) StackDelta() (int, error) {
	return s.StackDeltaFrom(0)
}

// StackDeltaFrom is StackDelta for a snippet inserted where entry values
// are already on the stack. Those values may be consumed.
func (s Snippet) StackDeltaFrom(entry int) (int, error) {
	depth := entry
	for i, ins := range s {
		pops, pushes, ok := ins.Op.stackEffect(ins.Operand)
		if !ok {
			return 0, fmt.Errorf("%v at %d: %w", ins, i, ErrUnknownStackEffect)
		}
		depth -= pops
		if depth < 0 {
			return 0, fmt.Errorf("%v at %d: %w", ins, i, ErrStackUnderflow)
		}
		depth += pushes
	}
	return depth - entry, nil
}
