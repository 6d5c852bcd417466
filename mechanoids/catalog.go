// Package mechanoids is the patch catalog that lets mechanoids form, run and
// finish caravans without colonists and operate scanners.
//
// Every descriptor is anchored on a landmark instruction. The offsets from
// that landmark were measured on the compiled bodies of host 1.5 and are
// kept below as named constants. A different host build most likely moves
// them, which shows up as AnchorNotFound (or, worse, a patch applied at the
// wrong spot, which is why HostVersion is checked).
package mechanoids

import (
	"github.com/pboyd/splice"
)

// Catalog categories. The caravan patches are BaseGame; the scanner patch
// is kept apart so it can be switched off on its own.
const (
	Category        = "BaseGame"
	ScannerCategory = "Scanner"
)

// KnownGoodHost is the range of host versions the offsets were measured
// on.
const KnownGoodHost = ">= 1.5.4062, < 1.6.0"

// Offsets measured against host 1.5.4104.
const (
	// FormCaravanComp.<GetGizmos>d__18.MoveNext, relative to the first
	// castclass.
	gizmosInsertionOffset  = 13
	gizmosJumpTargetOffset = 20

	// Dialog_FormCaravan.TrySend, relative to the ldstr of the food
	// warning key.
	trySendInsertionOffset  = 5
	trySendJumpTargetOffset = 22

	// CheckWonBattle and CheckDefeated, relative to the first stelem.ref.
	// The block goes in front of the RandomElement call that picks the
	// colonist and the fallback path rejoins right after the store.
	talePawnInsertionOffset  = -1
	talePawnJumpTargetOffset = 1

	// LordToil_PrepareCaravan_GatherItems.UpdateAllDuties, relative to the
	// first callvirt.
	updateDutiesInsertionOffset  = 2
	updateDutiesJumpTargetOffset = 5

	// LordToil_PrepareCaravan_GatherItems.LordToilTick, relative to the
	// first stloc.2.
	lordToilTickInsertionOffset  = 1
	lordToilTickJumpTargetOffset = 4

	// JobDriver_OperateScanner, relative to the experience rate constant.
	scannerInsertionOffset = -3
)

// scannerExperienceRate is the skill experience per tick given for
// operating a scanner, the anchor of the scanner patch.
const scannerExperienceRate = 0.035

const foodRotWarningKey = "CaravanFoodWillRotSoonWarningDialog"

// Targets of the catalog.
var (
	FormCaravanNoColonistTarget = splice.MethodID{
		Type:   "Dialog_FormCaravan",
		Scopes: []string{"<>c"},
		Method: "<CheckForErrors>b__95_0",
	}
	FormCaravanUnreachableTarget = splice.MethodID{
		Type:   "Dialog_FormCaravan",
		Scopes: []string{"<>c__DisplayClass95_0"},
		Method: "<CheckForErrors>b__1",
	}
	SplitCaravanNoColonistTarget = splice.MethodID{
		Type:   "Dialog_SplitCaravan",
		Scopes: []string{"<>c"},
		Method: "<CheckForErrors>b__85_0",
	}
	ReformGizmoTarget = splice.MethodID{
		Type:   "FormCaravanComp",
		Scopes: []string{"<GetGizmos>d__18"},
		Method: "MoveNext",
	}
	TrySendTarget = splice.MethodID{
		Type:   "Dialog_FormCaravan",
		Method: "TrySend",
	}
	CheckWonBattleTarget = splice.MethodID{
		Type:   "CaravansBattlefield",
		Method: "CheckWonBattle",
	}
	CheckDefeatedTarget = splice.MethodID{
		Type:   "SettlementDefeatUtility",
		Method: "CheckDefeated",
	}
	UpdateAllDutiesTarget = splice.MethodID{
		Type:   "LordToil_PrepareCaravan_GatherItems",
		Method: "UpdateAllDuties",
	}
	LordToilTickTarget = splice.MethodID{
		Type:   "LordToil_PrepareCaravan_GatherItems",
		Method: "LordToilTick",
	}
	OperateScannerTarget = splice.MethodID{
		Type:   "JobDriver_OperateScanner",
		Scopes: []string{"<>c__DisplayClass1_0"},
		Method: "<MakeNewToils>b__1",
	}
)

// Catalog returns every descriptor of the package.
func Catalog() (*splice.Catalog, error) {
	return splice.NewCatalog(Descriptors()...)
}

// Descriptors returns new copies of the descriptors, in application order.
func Descriptors() []*splice.Descriptor {
	return []*splice.Descriptor{
		noColonistCheck("FormCaravan.NoColonistCheck", FormCaravanNoColonistTarget),
		formCaravanUnreachable(),
		noColonistCheck("SplitCaravan.NoColonistCheck", SplitCaravanNoColonistTarget),
		reformGizmo(),
		trySendSocialWarning(),
		talePawnFallback("CaravansBattlefield.CheckWonBattle", CheckWonBattleTarget, splice.Arg(0), true),
		talePawnFallback("SettlementDefeatUtility.CheckDefeated", CheckDefeatedTarget, splice.Local(0), false),
		gatherItems("GatherItems.UpdateAllDuties", UpdateAllDutiesTarget,
			splice.OpIs(splice.Callvirt), updateDutiesInsertionOffset, updateDutiesJumpTargetOffset, splice.Local(1)),
		gatherItems("GatherItems.LordToilTick", LordToilTickTarget,
			splice.OpIs(splice.Stloc2), lordToilTickInsertionOffset, lordToilTickJumpTargetOffset, splice.Local(2)),
		scannerSkillsCheck(),
	}
}

// noColonistCheck patches the "pawn counts as a colonist" lambda of the
// caravan dialogs so that a mechanoid counts too:
//
//	if (pawn.RaceProps.IsMechanoid) return true;
func noColonistCheck(name string, target splice.MethodID) *splice.Descriptor {
	return &splice.Descriptor{
		Name:        name,
		Category:    Category,
		Target:      target,
		Anchor:      splice.AtIndex(0),
		Targets:     []splice.JumpTarget{splice.JumpTargetOffset(0)},
		HostVersion: KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return IsMechanoidCheck(splice.Arg(1)).Append(
				b.Branch(splice.BrfalseS, b.Label(0)),
				splice.New(splice.LdcI4_1),
				splice.New(splice.Ret),
			), nil
		},
	}
}

// formCaravanUnreachable skips the colonist test of the "can anyone reach
// this item" check for mechanoids.
func formCaravanUnreachable() *splice.Descriptor {
	return &splice.Descriptor{
		Name:        "FormCaravan.UnreachableCheck",
		Category:    Category,
		Target:      FormCaravanUnreachableTarget,
		Anchor:      splice.AtIndex(0),
		Targets:     []splice.JumpTarget{splice.JumpTargetOffset(3)},
		HostVersion: KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return IsMechanoidCheck(splice.Arg(1)).Append(
				b.Branch(splice.BrtrueS, b.Label(0)),
			), nil
		},
	}
}

// reformGizmo shows the "reform caravan" gizmo when the map has colony
// mechanoids even if it has no colonists.
func reformGizmo() *splice.Descriptor {
	stateMachine := "FormCaravanComp/<GetGizmos>d__18"
	displayClass := "FormCaravanComp/<>c__DisplayClass18_0"

	return &splice.Descriptor{
		Name:            "FormCaravanComp.ReformGizmo",
		Category:        Category,
		Target:          ReformGizmoTarget,
		Anchor:          splice.OpIs(splice.Castclass),
		InsertionOffset: gizmosInsertionOffset,
		Targets:         []splice.JumpTarget{splice.JumpTargetOffset(gizmosJumpTargetOffset)},
		HostVersion:     KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return ColonyMechCount(splice.Arg(0),
				splice.Field(stateMachine, "<>8__1"),
				splice.Field(displayClass, "mapParent"),
			).Append(
				b.Branch(splice.Brtrue, b.Label(0)),
			), nil
		},
	}
}

// trySendSocialWarning skips the "nobody has social skills" warning when
// the caravan has no colonists at all. At the insertion point the display
// class is on the stack; the block consumes it and reloads it for the
// original code.
func trySendSocialWarning() *splice.Descriptor {
	return &splice.Descriptor{
		Name:            "TrySend.SocialSkillsWarning",
		Category:        Category,
		Target:          TrySendTarget,
		Anchor:          splice.OpIs(splice.Ldstr).WithOperand(splice.String(foodRotWarningKey)),
		InsertionOffset: trySendInsertionOffset,
		Targets:         []splice.JumpTarget{splice.JumpTargetOffset(trySendJumpTargetOffset)},
		HostVersion:     KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return splice.Snippet{
				splice.New(splice.Ldfld, splice.FieldRef{Owner: "Dialog_FormCaravan/<>c__DisplayClass89_0", Name: "pawns"}),
				splice.New(splice.Call, pawnListHasNoColonists),
				b.Branch(splice.Brtrue, b.Label(0)),
				splice.Load(splice.Local(0)),
			}, nil
		},
	}
}

// talePawnFallback records a tale with a random colony mechanoid when there
// are no free colonists to pick from:
//
//	list.Count != 0 ? list.RandomElement() : mechs.RandomElement()
//
// The colonist list is already on the stack at the insertion point. The
// count consumes it, so the colonist path loads it again (an instruction
// duplicated into the other branch, carrying its own label) and falls into
// the original RandomElement call. The mechanoid path does its own store
// and jumps past the original one.
func talePawnFallback(name string, target splice.MethodID, base splice.Slot, viaMapParent bool) *splice.Descriptor {
	return &splice.Descriptor{
		Name:            name,
		Category:        Category,
		Target:          target,
		Anchor:          splice.OpIs(splice.StelemRef),
		InsertionOffset: talePawnInsertionOffset,
		Targets:         []splice.JumpTarget{splice.JumpTargetOffset(talePawnJumpTargetOffset)},
		HostVersion:     KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			finish := b.Label(0)
			colonists := b.Labeler.Mint()

			mechs := RandomColonyMechOfMap(base)
			reload := splice.Chain(base, mapPawnsField, freeColonists)
			if viaMapParent {
				mechs = RandomColonyMech(base)
				reload = splice.Chain(base, mapGetter, mapPawnsField, freeColonists)
			}
			reload[0] = reload[0].CloneWithLabels(colonists)

			return splice.Concat(
				splice.Snippet{}.Then(pawnListCount),
				splice.Snippet{b.Branch(splice.Brtrue, colonists)},
				mechs,
				splice.Snippet{
					splice.New(splice.StelemRef),
					b.Branch(splice.Br, finish),
				},
				reload,
			), nil
		},
	}
}

// gatherItems lets mechanoids take part in gathering items for a caravan by
// jumping over the "is this pawn a colonist" test.
func gatherItems(name string, target splice.MethodID, anchor splice.Predicate, insertion, jumpTarget int, pawn splice.Slot) *splice.Descriptor {
	return &splice.Descriptor{
		Name:            name,
		Category:        Category,
		Target:          target,
		Anchor:          anchor,
		InsertionOffset: insertion,
		Targets:         []splice.JumpTarget{splice.JumpTargetOffset(jumpTarget)},
		HostVersion:     KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return IsMechanoidCheck(pawn).Append(
				b.Branch(splice.BrtrueS, b.Label(0)),
			), nil
		},
	}
}

// scannerSkillsCheck returns early from the scanner tick before experience
// is awarded when the operator has no skills, as mechanoids don't.
func scannerSkillsCheck() *splice.Descriptor {
	return &splice.Descriptor{
		Name:            "OperateScanner.SkipSkills",
		Category:        ScannerCategory,
		Target:          OperateScannerTarget,
		Anchor:          splice.FloatNear(splice.LdcR4, scannerExperienceRate, 0.001),
		InsertionOffset: scannerInsertionOffset,
		Targets:         []splice.JumpTarget{splice.FirstMatch(splice.OpIs(splice.Ret))},
		HostVersion:     KnownGoodHost,
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return splice.Chain(splice.Local(0), pawnSkillsField).Append(
				b.Branch(splice.BrfalseS, b.Label(0)),
			), nil
		},
	}
}
