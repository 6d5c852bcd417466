package splice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testRaceProps  = Property("Pawn", "RaceProps")
	testMechanoid  = Property("RaceProperties", "IsMechanoid")
	testRandomPawn = MethodRef{Owner: "GenCollection", Name: "RandomElement", Generics: []string{"Pawn"}, Params: 1, Returns: true}
)

func TestLoad(t *testing.T) {
	cases := map[string]struct {
		slot Slot
		want *Instruction
	}{
		"arg 0":   {Arg(0), New(Ldarg0)},
		"arg 3":   {Arg(3), New(Ldarg3)},
		"arg 4":   {Arg(4), New(LdargS, Int(4))},
		"local 1": {Local(1), New(Ldloc1)},
		"local 2": {Local(2), New(Ldloc2)},
		"local 9": {Local(9), New(LdlocS, Int(9))},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(Load(tc.slot)), "got %v", Load(tc.slot))
		})
	}
}

func TestStore(t *testing.T) {
	assert.True(t, New(Stloc2).Equal(Store(2)))
	assert.True(t, New(StlocS, Int(5)).Equal(Store(5)))
}

func TestCapabilityCheck(t *testing.T) {
	assert := assert.New(t)

	s := CapabilityCheck(Arg(1), testRaceProps, testMechanoid)

	expected := Snippet{
		New(Ldarg1),
		New(Callvirt, MethodRef{Owner: "Pawn", Name: "get_RaceProps", HasThis: true, Returns: true}),
		New(Callvirt, MethodRef{Owner: "RaceProperties", Name: "get_IsMechanoid", HasThis: true, Returns: true}),
	}
	if assert.Len(s, len(expected)) {
		for i := range expected {
			assert.True(expected[i].Equal(s[i]), "instruction %d: %v", i, s[i])
		}
	}

	delta, err := s.StackDelta()
	assert.NoError(err)
	assert.Equal(1, delta)

	// Changing the base only changes the load.
	s2 := CapabilityCheck(Local(2), testRaceProps, testMechanoid)
	assert.Equal(Ldloc2, s2[0].Op)
	assert.True(Snippet(s[1:]).equal(s2[1:]))
}

func TestRandomPick(t *testing.T) {
	assert := assert.New(t)

	s := RandomPick(Arg(0), testRandomPawn,
		Property("MapParent", "Map"),
		Field("Map", "mapPawns"),
		Property("MapPawns", "SpawnedColonyMechs"),
	)

	ops := make([]Opcode, len(s))
	for i, ins := range s {
		ops[i] = ins.Op
	}
	assert.Equal([]Opcode{Ldarg0, Callvirt, Ldfld, Callvirt, Call}, ops)
	assert.True(New(Ldfld, FieldRef{Owner: "Map", Name: "mapPawns"}).Equal(s[2]))
	assert.True(New(Call, testRandomPawn).Equal(s[4]))

	delta, err := s.StackDelta()
	assert.NoError(err)
	assert.Equal(1, delta)
}

func TestSnippetsAreIndependent(t *testing.T) {
	a := CapabilityCheck(Arg(1), testRaceProps)
	b := CapabilityCheck(Arg(1), testRaceProps)
	assert.NotSame(t, a[0], b[0])

	a[0].addLabel(1)
	assert.Empty(t, b[0].Labels)
}

func TestConcat(t *testing.T) {
	a := Snippet{New(Ldarg0)}
	b := Snippet{New(Ldarg1), New(Pop)}
	c := Concat(a, nil, b).Append(New(Ret))

	assert.Len(t, c, 4)
	assert.Same(t, a[0], c[0])
	assert.Same(t, b[1], c[2])
	assert.Equal(t, Ret, c[3].Op)
}

func TestStackDelta(t *testing.T) {
	cases := map[string]struct {
		s     Snippet
		delta int
		err   error
	}{
		"empty":            {nil, 0, nil},
		"load":             {Snippet{New(Ldarg0)}, 1, nil},
		"check and branch": {Snippet{New(Ldarg1), New(Callvirt, testRaceProps.Operand), New(BrfalseS, LabelRef(0))}, 0, nil},
		"store":            {Snippet{New(LdcI4_1), Store(0)}, 0, nil},
		"dup":              {Snippet{New(Ldnull), New(Dup)}, 2, nil},
		"static call":      {Snippet{New(Ldnull), New(Call, testRandomPawn)}, 1, nil},
		"stelem":           {Snippet{New(Ldnull), New(LdcI4_0), New(Ldnull), New(StelemRef)}, 0, nil},
		"underflow":        {Snippet{New(Pop)}, 0, ErrStackUnderflow},
		"field underflow":  {Snippet{New(Ldfld, FieldRef{"Map", "mapPawns"})}, 0, ErrStackUnderflow},
		"call without ref": {Snippet{New(Call, String("x"))}, 0, ErrUnknownStackEffect},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			delta, err := tc.s.StackDelta()
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.delta, delta)
		})
	}
}

func TestStackDeltaFrom(t *testing.T) {
	assert := assert.New(t)

	// Consumes the value below it and leaves one in its place.
	s := Snippet{New(Ldfld, FieldRef{"Map", "mapPawns"})}
	delta, err := s.StackDeltaFrom(1)
	assert.NoError(err)
	assert.Equal(0, delta)

	delta, err = Snippet{New(Pop), New(Pop)}.StackDeltaFrom(2)
	assert.NoError(err)
	assert.Equal(-2, delta)

	_, err = Snippet{New(Pop), New(Pop)}.StackDeltaFrom(1)
	assert.ErrorIs(err, ErrStackUnderflow)
}

func (s Snippet) equal(other Snippet) bool {
	return Sequence(s).Equal(Sequence(other))
}
