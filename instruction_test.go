package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstructionLabels(t *testing.T) {
	assert := assert.New(t)

	ins := New(Ret)
	assert.True(ins.addLabel(3))
	assert.True(ins.addLabel(1))
	assert.False(ins.addLabel(3))
	assert.Equal([]Label{1, 3}, ins.Labels)
	assert.True(ins.HasLabel(1))
	assert.False(ins.HasLabel(2))
}

func TestInstructionClone(t *testing.T) {
	assert := assert.New(t)

	ins := New(Ldfld, FieldRef{Owner: "Pawn", Name: "skills"})
	ins.addLabel(7)

	c := ins.Clone()
	assert.True(ins.Equal(c))
	assert.NotSame(ins, c)

	c.addLabel(8)
	assert.False(ins.HasLabel(8), "clone shares labels with the original")

	moved := ins.CloneWithLabels(9, 9, 2)
	assert.Equal(ins.Op, moved.Op)
	assert.True(operandsEqual(ins.Operand, moved.Operand))
	assert.Equal([]Label{2, 9}, moved.Labels)
	assert.False(ins.Equal(moved))
}

func TestInstructionEqual(t *testing.T) {
	cases := map[string]struct {
		a, b  *Instruction
		equal bool
	}{
		"same opcode no operand": {New(Ret), New(Ret), true},
		"different opcode":       {New(Ret), New(Nop), false},
		"equal operands":         {New(Ldstr, String("x")), New(Ldstr, String("x")), true},
		"different operands":     {New(Ldstr, String("x")), New(Ldstr, String("y")), false},
		"operand vs none":        {New(Ldstr, String("x")), New(Ldstr), false},
		"different operand type": {New(LdcI4, Int(1)), New(LdcI4, Float(1)), false},
		"method refs": {
			New(Call, MethodRef{Owner: "GenCollection", Name: "RandomElement", Generics: []string{"Pawn"}, Params: 1, Returns: true}),
			New(Call, MethodRef{Owner: "GenCollection", Name: "RandomElement", Generics: []string{"Pawn"}, Params: 1, Returns: true}),
			true,
		},
		"method refs with different generics": {
			New(Call, MethodRef{Owner: "GenCollection", Name: "RandomElement", Generics: []string{"Pawn"}}),
			New(Call, MethodRef{Owner: "GenCollection", Name: "RandomElement", Generics: []string{"Thing"}}),
			false,
		},
		"nil": {nil, New(Ret), false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.equal, tc.a.Equal(tc.b))
		})
	}
}

func TestInstructionTarget(t *testing.T) {
	assert := assert.New(t)

	l, ok := New(BrtrueS, LabelRef(4)).Target()
	assert.True(ok)
	assert.Equal(Label(4), l)

	_, ok = New(Ldarg0).Target()
	assert.False(ok)
}

func TestInstructionString(t *testing.T) {
	ins := New(Brfalse, LabelRef(2))
	ins.addLabel(1)
	assert.Equal(t, "L1: brfalse L2", ins.String())
	assert.Equal(t, `ldstr "CaravanFoodWillRotSoonWarningDialog"`, New(Ldstr, String("CaravanFoodWillRotSoonWarningDialog")).String())
}

func TestDefineOpcode(t *testing.T) {
	assert := assert.New(t)

	op := DefineOpcode("test.jump", FlowBranch)
	assert.GreaterOrEqual(int(op), int(numCoreOpcodes))
	assert.Equal("test.jump", op.String())
	assert.True(op.IsBranch())
	assert.False(op.IsConditionalBranch())

	_, _, ok := op.stackEffect(nil)
	assert.False(ok)

	assert.Equal("opcode(65535)", Opcode(0xffff).String())
}
