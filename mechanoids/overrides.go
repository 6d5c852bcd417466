package mechanoids

import (
	"math/rand/v2"
	"slices"
)

// Pawn is the part of a host pawn the value overrides read.
type Pawn interface {
	IsMechanoid() bool
	IsColonist() bool
	Downed() bool
	Burning() bool
	OverEncumbered() bool
	// PlayerControlled reports whether the pawn's host faction is the
	// player's.
	PlayerControlled() bool
}

// The functions below are value overrides: they take the result the host
// computed and return the one it should use. None of them touch an
// instruction stream.

// HasMechanoids reports whether pawns holds a mechanoid. nil entries are
// ignored.
func HasMechanoids(pawns []Pawn) bool {
	return slices.ContainsFunc(pawns, isMechanoid)
}

// PawnListHasNoColonists reports whether pawns has no colonist. It is the
// helper called by the TrySend patch.
func PawnListHasNoColonists(pawns []Pawn) bool {
	return !slices.ContainsFunc(pawns, isColonist)
}

// AllOwnersDowned overrides Caravan.AllOwnersDowned: a caravan with a
// standing mechanoid can still move.
func AllOwnersDowned(result bool, pawns []Pawn) bool {
	for _, p := range pawns {
		if isMechanoid(p) && !p.Downed() {
			return false
		}
	}
	return result
}

// AllOwnersHaveMentalBreak overrides Caravan.AllOwnersHaveMentalBreak.
// Mechanoids don't break.
func AllOwnersHaveMentalBreak(result bool, pawns []Pawn) bool {
	if HasMechanoids(pawns) {
		return false
	}
	return result
}

// CanReformNow overrides FormCaravanComp.CanReformNow and
// CanFormOrReformCaravanNow: a map with spawned colony mechanoids can
// always reform.
func CanReformNow(result bool, spawnedColonyMechs int) bool {
	if spawnedColonyMechs > 0 {
		return true
	}
	return result
}

// Transfer is one entry of the caravan forming dialog: the pawns offered
// and how many of them are sent.
type Transfer struct {
	Pawns []Pawn
	Count int
}

// MechanitorWarning overrides
// Dialog_FormCaravan.ShouldShowWarningForMechWithoutMechanitor. A caravan
// that sends no colonist has no use for a mechanitor.
func MechanitorWarning(result bool, transfers []Transfer) bool {
	for _, t := range transfers {
		n := min(t.Count, len(t.Pawns))
		if slices.ContainsFunc(t.Pawns[:max(n, 0)], isColonist) {
			return result
		}
	}
	return false
}

// RandomOwner picks the caravan member reported as its owner when no pawn
// is an owner. ok is false when the host should pick as usual.
func RandomOwner(pawns []Pawn, isOwner func(Pawn) bool, rng *rand.Rand) (owner Pawn, ok bool) {
	for _, p := range pawns {
		if p != nil && isOwner(p) {
			return nil, false
		}
	}

	var mechs []Pawn
	for _, p := range pawns {
		if isMechanoid(p) {
			mechs = append(mechs, p)
		}
	}
	if len(mechs) == 0 {
		return nil, false
	}
	return mechs[rng.IntN(len(mechs))], true
}

// IsUsableCarrier overrides JobDriver_PrepareCaravan_GatherItems.
// IsUsableCarrier so that mechanoids haul like pack animals.
func IsUsableCarrier(result bool, p Pawn) bool {
	if p == nil || !(p.IsMechanoid() || p.PlayerControlled()) || p.Burning() || p.Downed() {
		return result
	}
	return !p.OverEncumbered()
}

// KeepCaravanOnDeath decides Caravan.Notify_PawnKilled: it reports whether
// the caravan should only drop the killed pawn instead of being destroyed,
// which is the case when mechanoids but no colonists remain.
func KeepCaravanOnDeath(pawns []Pawn, killed Pawn) bool {
	if killed == nil || !HasMechanoids(pawns) {
		return false
	}

	hasMech := false
	for _, p := range pawns {
		if p == killed {
			continue
		}
		if isColonist(p) {
			return false
		}
		if isMechanoid(p) {
			hasMech = true
		}
	}
	return hasMech
}

// RepairShouldSkip overrides WorkGiver_RepairMech.ShouldSkip so that
// mechanoids repair each other.
func RepairShouldSkip(result bool, p Pawn) bool {
	if isMechanoid(p) {
		return false
	}
	return result
}

// SubcoreEncoder is the def name of the bench mechanoids may work at.
const SubcoreEncoder = "SubcoreEncoder"

// PawnAllowedToStartAnew overrides Bill.PawnAllowedToStartAnew for recipes
// made at a subcore encoder.
func PawnAllowedToStartAnew(result bool, p Pawn, recipeUsers []string) bool {
	if result || !isMechanoid(p) {
		return result
	}
	return slices.Contains(recipeUsers, SubcoreEncoder)
}

func isMechanoid(p Pawn) bool {
	return p != nil && p.IsMechanoid()
}

func isColonist(p Pawn) bool {
	return p != nil && p.IsColonist()
}
