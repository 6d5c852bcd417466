package splice

import (
	"fmt"
	"sync"
)

// Opcode identifies the kind of operation an instruction performs.
type Opcode uint16

// Flow describes how an opcode affects control flow.
type Flow uint8

const (
	FlowNext Flow = iota
	FlowBranch
	FlowCondBranch
	FlowReturn
	FlowCall
)

// Variable is used as the pop/push count of opcodes whose stack effect
// depends on their operand (calls).
const Variable = -1

type opcodeInfo struct {
	name   string
	flow   Flow
	pops   int
	pushes int
}

// The core opcode set. It mirrors the subset of a managed stack machine's
// instruction set that patches need to reference.
const (
	Nop Opcode = iota
	Ldarg0
	Ldarg1
	Ldarg2
	Ldarg3
	LdargS
	Ldloc0
	Ldloc1
	Ldloc2
	Ldloc3
	LdlocS
	Stloc0
	Stloc1
	Stloc2
	Stloc3
	StlocS
	Ldnull
	LdcI4
	LdcI4_0
	LdcI4_1
	LdcR4
	Ldstr
	Ldfld
	Ldsfld
	Stfld
	Stsfld
	Ldftn
	Call
	Callvirt
	Newobj
	Newarr
	Castclass
	Isinst
	Ldlen
	Add
	Ceq
	StelemRef
	Pop
	Dup
	Ret
	Br
	BrS
	Brtrue
	BrtrueS
	Brfalse
	BrfalseS
	BltS
	Leave

	numCoreOpcodes
)

var (
	opcodesMu sync.RWMutex
	opcodes   = []opcodeInfo{
		Nop:       {"nop", FlowNext, 0, 0},
		Ldarg0:    {"ldarg.0", FlowNext, 0, 1},
		Ldarg1:    {"ldarg.1", FlowNext, 0, 1},
		Ldarg2:    {"ldarg.2", FlowNext, 0, 1},
		Ldarg3:    {"ldarg.3", FlowNext, 0, 1},
		LdargS:    {"ldarg.s", FlowNext, 0, 1},
		Ldloc0:    {"ldloc.0", FlowNext, 0, 1},
		Ldloc1:    {"ldloc.1", FlowNext, 0, 1},
		Ldloc2:    {"ldloc.2", FlowNext, 0, 1},
		Ldloc3:    {"ldloc.3", FlowNext, 0, 1},
		LdlocS:    {"ldloc.s", FlowNext, 0, 1},
		Stloc0:    {"stloc.0", FlowNext, 1, 0},
		Stloc1:    {"stloc.1", FlowNext, 1, 0},
		Stloc2:    {"stloc.2", FlowNext, 1, 0},
		Stloc3:    {"stloc.3", FlowNext, 1, 0},
		StlocS:    {"stloc.s", FlowNext, 1, 0},
		Ldnull:    {"ldnull", FlowNext, 0, 1},
		LdcI4:     {"ldc.i4", FlowNext, 0, 1},
		LdcI4_0:   {"ldc.i4.0", FlowNext, 0, 1},
		LdcI4_1:   {"ldc.i4.1", FlowNext, 0, 1},
		LdcR4:     {"ldc.r4", FlowNext, 0, 1},
		Ldstr:     {"ldstr", FlowNext, 0, 1},
		Ldfld:     {"ldfld", FlowNext, 1, 1},
		Ldsfld:    {"ldsfld", FlowNext, 0, 1},
		Stfld:     {"stfld", FlowNext, 2, 0},
		Stsfld:    {"stsfld", FlowNext, 1, 0},
		Ldftn:     {"ldftn", FlowNext, 0, 1},
		Call:      {"call", FlowCall, Variable, Variable},
		Callvirt:  {"callvirt", FlowCall, Variable, Variable},
		Newobj:    {"newobj", FlowCall, Variable, 1},
		Newarr:    {"newarr", FlowNext, 1, 1},
		Castclass: {"castclass", FlowNext, 1, 1},
		Isinst:    {"isinst", FlowNext, 1, 1},
		Ldlen:     {"ldlen", FlowNext, 1, 1},
		Add:       {"add", FlowNext, 2, 1},
		Ceq:       {"ceq", FlowNext, 2, 1},
		StelemRef: {"stelem.ref", FlowNext, 3, 0},
		Pop:       {"pop", FlowNext, 1, 0},
		Dup:       {"dup", FlowNext, 1, 2},
		Ret:       {"ret", FlowReturn, 0, 0},
		Br:        {"br", FlowBranch, 0, 0},
		BrS:       {"br.s", FlowBranch, 0, 0},
		Brtrue:    {"brtrue", FlowCondBranch, 1, 0},
		BrtrueS:   {"brtrue.s", FlowCondBranch, 1, 0},
		Brfalse:   {"brfalse", FlowCondBranch, 1, 0},
		BrfalseS:  {"brfalse.s", FlowCondBranch, 1, 0},
		BltS:      {"blt.s", FlowCondBranch, 2, 0},
		Leave:     {"leave", FlowBranch, 0, 0},
	}
)

// DefineOpcode registers an opcode outside of the core set. Backends use it
// to describe their own instruction kinds. The stack effect of a defined
// opcode is unknown to the engine.
func DefineOpcode(name string, flow Flow) Opcode {
	opcodesMu.Lock()
	defer opcodesMu.Unlock()

	opcodes = append(opcodes, opcodeInfo{name, flow, Variable, Variable})
	return Opcode(len(opcodes) - 1)
}

func (op Opcode) info() (opcodeInfo, bool) {
	opcodesMu.RLock()
	defer opcodesMu.RUnlock()

	if int(op) >= len(opcodes) {
		return opcodeInfo{}, false
	}
	return opcodes[op], true
}

func (op Opcode) String() string {
	info, ok := op.info()
	if !ok {
		return fmt.Sprintf("opcode(%d)", uint16(op))
	}
	return info.name
}

// Flow returns the control flow kind of op.
func (op Opcode) Flow() Flow {
	info, _ := op.info()
	return info.flow
}

// IsBranch reports whether op transfers control to a label, conditionally
// or not.
func (op Opcode) IsBranch() bool {
	f := op.Flow()
	return f == FlowBranch || f == FlowCondBranch
}

// IsConditionalBranch reports whether op is a branch that may fall through.
func (op Opcode) IsConditionalBranch() bool {
	return op.Flow() == FlowCondBranch
}

// stackEffect returns how many values op pops and pushes. Calls take their
// stack effect from the method reference. ok is false when the effect can't
// be determined.
func (op Opcode) stackEffect(operand Operand) (pops, pushes int, ok bool) {
	info, found := op.info()
	if !found {
		return 0, 0, false
	}
	if info.flow == FlowCall {
		m, isMethod := operand.(MethodRef)
		if !isMethod {
			return 0, 0, false
		}
		pops = m.Params
		if m.HasThis && op != Newobj {
			pops++
		}
		if m.Returns || op == Newobj {
			pushes = 1
		}
		return pops, pushes, true
	}
	if info.pops == Variable || info.pushes == Variable {
		return 0, 0, false
	}
	return info.pops, info.pushes, true
}
