package mechanoids

import (
	"github.com/pboyd/splice"
	"github.com/pboyd/splice/memhost"
)

// ReferenceVersion is the host build the reference shapes were taken from.
const ReferenceVersion = "1.5.4104"

// ReferenceHost returns an in-memory host holding the catalog's target
// methods as compiled by the reference host build. Only the parts of the
// bodies around the anchors are faithful; operands the catalog never looks
// at are abbreviated.
func ReferenceHost() *memhost.Program {
	p := memhost.New(ReferenceVersion)
	for _, m := range referenceMethods() {
		p.DefineMethod(m.id, m.body)
	}
	return p
}

type referenceMethod struct {
	id   splice.MethodID
	body splice.Sequence
}

func op(o splice.Opcode, operand ...splice.Operand) *splice.Instruction {
	return splice.New(o, operand...)
}

func br(o splice.Opcode, l splice.Label) *splice.Instruction {
	return splice.New(o, splice.LabelRef(l))
}

func at(l splice.Label, ins *splice.Instruction) *splice.Instruction {
	return ins.CloneWithLabels(l)
}

func field(owner, name string) splice.FieldRef {
	return splice.FieldRef{Owner: owner, Name: name}
}

func getter(a splice.Accessor) *splice.Instruction {
	return splice.New(a.Op, a.Operand)
}

var (
	translate  = splice.MethodRef{Owner: "TranslatorFormattedStringExtensions", Name: "Translate", Params: 1, Returns: true}
	toString   = splice.MethodRef{Owner: "TaggedString", Name: "op_Implicit", Params: 1, Returns: true}
	addString  = splice.MethodRef{Owner: "List`1<string>", Name: "Add", Params: 1, HasThis: true}
	recordTale = splice.MethodRef{Owner: "TaleRecorder", Name: "RecordTale", Params: 2, Returns: true}
	pawnAt     = splice.MethodRef{Owner: "List`1<Pawn>", Name: "get_Item", Params: 1, HasThis: true, Returns: true}
)

func referenceMethods() []referenceMethod {
	return []referenceMethod{
		{FormCaravanNoColonistTarget, isColonistLambda()},
		{FormCaravanUnreachableTarget, unreachableLambda()},
		{SplitCaravanNoColonistTarget, isColonistLambda()},
		{ReformGizmoTarget, gizmosMoveNext()},
		{TrySendTarget, trySend()},
		{CheckWonBattleTarget, checkWonBattle()},
		{CheckDefeatedTarget, checkDefeated()},
		{UpdateAllDutiesTarget, updateAllDuties()},
		{LordToilTickTarget, lordToilTick()},
		{OperateScannerTarget, operateScannerTick()},
	}
}

// x => x.IsColonist
func isColonistLambda() splice.Sequence {
	return splice.Sequence{
		op(splice.Ldarg1),
		getter(isColonistGetter),
		op(splice.Ret),
	}
}

// p => p.IsColonist && p.CanReach(thing)
func unreachableLambda() splice.Sequence {
	return splice.Sequence{
		op(splice.Ldarg1),
		getter(isColonistGetter),
		br(splice.BrfalseS, 0),
		op(splice.Ldarg1),
		op(splice.Ldarg0),
		op(splice.Ldfld, field("Dialog_FormCaravan/<>c__DisplayClass95_0", "thing")),
		op(splice.Call, splice.MethodRef{Owner: "ReachabilityUtility", Name: "CanReach", Params: 2, Returns: true}),
		op(splice.Ret),
		at(0, op(splice.LdcI4_0)),
		op(splice.Ret),
	}
}

func gizmosMoveNext() splice.Sequence {
	const (
		stateMachine = "FormCaravanComp/<GetGizmos>d__18"
		displayClass = "FormCaravanComp/<>c__DisplayClass18_0"
	)
	done := splice.Label(0)

	return splice.Sequence{
		op(splice.Ldarg0),
		op(splice.Ldfld, field(stateMachine, "<>1__state")),
		op(splice.Stloc0),
		op(splice.Ldarg0),
		op(splice.Ldarg0),
		op(splice.Ldfld, field(stateMachine, "<>4__this")),
		op(splice.Ldfld, field("WorldObjectComp", "parent")),
		op(splice.Castclass, splice.String("MapParent")), // anchor
		op(splice.Stloc1),
		op(splice.Ldarg0),
		op(splice.Ldfld, field(stateMachine, "<>8__1")),
		op(splice.Ldloc1),
		op(splice.Stfld, field(displayClass, "mapParent")),
		op(splice.Ldarg0),
		op(splice.Ldfld, field(stateMachine, "<>4__this")),
		op(splice.Call, splice.MethodRef{Owner: "FormCaravanComp", Name: "get_Reform", HasThis: true, Returns: true}),
		br(splice.Brfalse, done),
		op(splice.Ldloc1),
		getter(splice.Property("MapParent", "HasMap")),
		br(splice.Brfalse, done),
		op(splice.Ldarg0), // anchor+13
		op(splice.Ldfld, field(stateMachine, "<>8__1")),
		op(splice.Ldfld, field(displayClass, "mapParent")),
		getter(mapGetter),
		getter(mapPawnsField),
		getter(splice.Property("MapPawns", "FreeColonistsSpawnedCount")),
		br(splice.Brfalse, done),
		op(splice.Ldarg0), // anchor+20
		op(splice.Newobj, splice.MethodRef{Owner: "Command_Action", Name: ".ctor"}),
		op(splice.Stfld, field(stateMachine, "<>2__current")),
		op(splice.LdcI4_1),
		op(splice.Ret),
		at(done, op(splice.LdcI4_0)),
		op(splice.Ret),
	}
}

func trySend() splice.Sequence {
	const displayClass = "Dialog_FormCaravan/<>c__DisplayClass89_0"
	const closures = "Dialog_FormCaravan/<>c"
	var (
		noFoodWarning   = splice.Label(0)
		noSocialWarning = splice.Label(1)
		cached          = splice.Label(2)
		send            = splice.Label(3)
	)

	return splice.Sequence{
		op(splice.Ldarg0),
		op(splice.Call, splice.MethodRef{Owner: "Dialog_FormCaravan", Name: "get_MostFoodWillRotSoon", HasThis: true, Returns: true}),
		br(splice.BrfalseS, noFoodWarning),
		op(splice.Ldloc1),
		op(splice.Ldstr, splice.String(foodRotWarningKey)), // anchor
		op(splice.Call, translate),
		op(splice.Call, toString),
		op(splice.Callvirt, addString),
		at(noFoodWarning, op(splice.Ldloc0)),
		op(splice.Ldfld, field(displayClass, "pawns")), // anchor+5
		op(splice.Ldsfld, field(closures, "<>9__89_1")),
		op(splice.Dup),
		br(splice.BrtrueS, cached),
		op(splice.Pop),
		op(splice.Ldsfld, field(closures, "<>9")),
		op(splice.Ldftn, splice.MethodRef{Owner: closures, Name: "<TrySend>b__89_1", Params: 1, HasThis: true, Returns: true}),
		op(splice.Newobj, splice.MethodRef{Owner: "Func`2<Pawn,bool>", Name: ".ctor", Params: 2}),
		op(splice.Dup),
		op(splice.Stsfld, field(closures, "<>9__89_1")),
		at(cached, op(splice.Call, splice.MethodRef{Owner: "Enumerable", Name: "Any", Generics: []string{"Pawn"}, Params: 2, Returns: true})),
		br(splice.BrtrueS, noSocialWarning),
		op(splice.Ldloc1),
		op(splice.Ldstr, splice.String("CaravanNoOneWithSocialSkill")),
		op(splice.Call, translate),
		op(splice.Call, toString),
		op(splice.Callvirt, addString),
		at(noSocialWarning, op(splice.Ldloc1)), // anchor+22
		op(splice.Callvirt, splice.MethodRef{Owner: "List`1<string>", Name: "get_Count", HasThis: true, Returns: true}),
		br(splice.BrfalseS, send),
		op(splice.Ldarg0),
		op(splice.Ldloc1),
		op(splice.Call, splice.MethodRef{Owner: "Dialog_FormCaravan", Name: "ShowWarnings", Params: 1, HasThis: true}),
		op(splice.LdcI4_0),
		op(splice.Ret),
		at(send, op(splice.Ldarg0)),
		op(splice.Call, splice.MethodRef{Owner: "Dialog_FormCaravan", Name: "DoSend", HasThis: true, Returns: true}),
		op(splice.Ret),
	}
}

// taleArgs loads the argument array of RecordTale holding one pawn picked
// at random from the free colonists of the map reached through mapPath.
func taleArgs(tale string, mapPath ...*splice.Instruction) splice.Sequence {
	seq := splice.Sequence{
		op(splice.Ldsfld, field("TaleDefOf", tale)),
		op(splice.LdcI4_1),
		op(splice.Newarr, splice.String("object")),
		op(splice.Dup),
		op(splice.LdcI4_0),
	}
	seq = append(seq, mapPath...)
	return append(seq,
		getter(mapPawnsField),
		getter(freeColonists),
		op(splice.Call, randomPawn),
		op(splice.StelemRef), // anchor
		op(splice.Call, recordTale),
		op(splice.Pop),
	)
}

func checkWonBattle() splice.Sequence {
	done := splice.Label(0)

	seq := splice.Sequence{
		op(splice.Ldarg0),
		op(splice.Ldfld, field("CaravansBattlefield", "wonBattle")),
		br(splice.BrtrueS, done),
		op(splice.Ldarg0),
		getter(mapGetter),
		op(splice.LdcI4_1),
		op(splice.Call, splice.MethodRef{Owner: "GenHostility", Name: "AnyHostileActiveThreatToPlayer", Params: 2, Returns: true}),
		br(splice.BrtrueS, done),
	}
	seq = append(seq, taleArgs("CaravanAmbushDefeated", op(splice.Ldarg0), getter(mapGetter))...)
	return append(seq,
		op(splice.Ldarg0),
		op(splice.LdcI4_1),
		op(splice.Stfld, field("CaravansBattlefield", "wonBattle")),
		at(done, op(splice.Ret)),
	)
}

func checkDefeated() splice.Sequence {
	done := splice.Label(0)

	seq := splice.Sequence{
		op(splice.Ldarg0),
		getter(mapGetter),
		op(splice.Stloc0),
		op(splice.Ldloc0),
		op(splice.Call, splice.MethodRef{Owner: "SettlementDefeatUtility", Name: "IsDefeated", Params: 1, Returns: true}),
		br(splice.BrfalseS, done),
	}
	seq = append(seq, taleArgs("CaravanAssaultSuccessful", op(splice.Ldloc0))...)
	return append(seq,
		op(splice.Ldarg0),
		op(splice.Call, splice.MethodRef{Owner: "SettlementDefeatUtility", Name: "DestroySettlement", Params: 1}),
		at(done, op(splice.Ret)),
	)
}

// ownedPawnsLoop is a for loop over lord.ownedPawns with the index in
// local 0 and the current pawn in local pawn. body runs for colonists only;
// the colonist test starts right after the pawn is stored.
func ownedPawnsLoop(pawn int, prologue splice.Sequence, body ...*splice.Instruction) splice.Sequence {
	var (
		loop = splice.Label(0)
		cond = splice.Label(1)
		next = splice.Label(2)
	)
	ownedPawns := []*splice.Instruction{
		op(splice.Ldarg0),
		op(splice.Ldfld, field("LordToil", "lord")),
		op(splice.Ldfld, field("Lord", "ownedPawns")),
	}

	seq := append(splice.Sequence{}, prologue...)
	seq = append(seq,
		op(splice.LdcI4_0),
		op(splice.Stloc0),
		br(splice.BrS, cond),
	)
	seq = append(seq, at(loop, ownedPawns[0]))
	seq = append(seq, ownedPawns[1:]...)
	seq = append(seq,
		op(splice.Ldloc0),
		op(splice.Callvirt, pawnAt),
		splice.Store(pawn),
		splice.Load(splice.Local(pawn)),
		getter(isColonistGetter),
		br(splice.BrfalseS, next),
	)
	seq = append(seq, body...)
	seq = append(seq,
		at(next, op(splice.Ldloc0)),
		op(splice.LdcI4_1),
		op(splice.Add),
		op(splice.Stloc0),
		at(cond, op(splice.Ldloc0)),
	)
	seq = append(seq, ownedPawns[0].Clone(), ownedPawns[1].Clone(), ownedPawns[2].Clone())
	return append(seq,
		getter(pawnListCount),
		br(splice.BltS, loop),
		op(splice.Ret),
	)
}

func updateAllDuties() splice.Sequence {
	return ownedPawnsLoop(1, nil,
		op(splice.Ldloc1),
		op(splice.Ldfld, field("Pawn", "mindState")),
		op(splice.Ldsfld, field("DutyDefOf", "PrepareCaravan_GatherItems")),
		op(splice.Newobj, splice.MethodRef{Owner: "PawnDuty", Name: ".ctor", Params: 1}),
		op(splice.Stfld, field("Pawn_MindState", "duty")),
	)
}

func lordToilTick() splice.Sequence {
	gathered := splice.Label(3)
	prologue := splice.Sequence{
		op(splice.LdcI4_1),
		op(splice.Stloc3),
	}
	return ownedPawnsLoop(2, prologue,
		op(splice.Ldloc2),
		op(splice.Ldfld, field("Pawn", "mindState")),
		op(splice.Ldfld, field("Pawn_MindState", "lastJobTag")),
		op(splice.LdcI4, splice.Int(6)),
		op(splice.Ceq),
		br(splice.BrtrueS, gathered),
		op(splice.LdcI4_0),
		op(splice.Stloc3),
		at(gathered, op(splice.Nop)),
	)
}

func operateScannerTick() splice.Sequence {
	const displayClass = "JobDriver_OperateScanner/<>c__DisplayClass1_0"

	return splice.Sequence{
		op(splice.Ldarg0),
		op(splice.Ldfld, field(displayClass, "<>4__this")),
		op(splice.Ldfld, field("JobDriver", "pawn")),
		op(splice.Stloc0),
		op(splice.Ldarg0),
		op(splice.Ldfld, field(displayClass, "scannerComp")),
		op(splice.Ldloc0),
		op(splice.Callvirt, splice.MethodRef{Owner: "CompScanner", Name: "Used", Params: 1, HasThis: true}),
		op(splice.Ldloc0),
		op(splice.Ldfld, field("Pawn", "skills")),
		op(splice.Ldsfld, field("SkillDefOf", "Intellectual")),
		op(splice.LdcR4, splice.Float(scannerExperienceRate)), // anchor
		op(splice.LdcI4_0),
		op(splice.LdcI4_0),
		op(splice.Callvirt, splice.MethodRef{Owner: "Pawn_SkillTracker", Name: "Learn", Params: 4, HasThis: true}),
		op(splice.Ldloc0),
		op(splice.LdcI4_0),
		op(splice.Call, splice.MethodRef{Owner: "PawnUtility", Name: "GainComfortFromCellIfPossible", Params: 2}),
		op(splice.Ret),
	}
}
