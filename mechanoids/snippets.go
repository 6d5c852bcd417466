package mechanoids

import "github.com/pboyd/splice"

// Host members referenced by injected code.
var (
	racePropsGetter    = splice.Property("Pawn", "RaceProps")
	isMechanoidGetter  = splice.Property("RaceProperties", "IsMechanoid")
	isColonistGetter   = splice.Property("Pawn", "IsColonist")
	mapGetter          = splice.Property("MapParent", "Map")
	mapPawnsField      = splice.Field("Map", "mapPawns")
	spawnedColonyMechs = splice.Property("MapPawns", "SpawnedColonyMechs")
	freeColonists      = splice.Property("MapPawns", "FreeColonists")
	pawnListCount      = splice.Property("List`1<Pawn>", "Count")
	pawnSkillsField    = splice.Field("Pawn", "skills")

	randomPawn = splice.MethodRef{
		Owner:    "GenCollection",
		Name:     "RandomElement",
		Generics: []string{"Pawn"},
		Params:   1,
		Returns:  true,
	}

	// pawnListHasNoColonists is the helper the TrySend patch calls. It is
	// provided to the host alongside the catalog; PawnListHasNoColonists
	// is its behavior.
	pawnListHasNoColonists = splice.MethodRef{
		Owner:   "CrystalMechanoids.Helpers",
		Name:    "PawnListHasNoColonists",
		Params:  1,
		Returns: true,
	}
)

// IsMechanoidCheck leaves true on the stack when the pawn held in base is a
// mechanoid.
func IsMechanoidCheck(base splice.Slot) splice.Snippet {
	return splice.CapabilityCheck(base, racePropsGetter, isMechanoidGetter)
}

// RandomColonyMech leaves a random spawned colony mechanoid on the stack.
// base holds a MapParent.
func RandomColonyMech(base splice.Slot) splice.Snippet {
	return splice.RandomPick(base, randomPawn, mapGetter, mapPawnsField, spawnedColonyMechs)
}

// RandomColonyMechOfMap is RandomColonyMech for a base holding a Map.
func RandomColonyMechOfMap(base splice.Slot) splice.Snippet {
	return splice.RandomPick(base, randomPawn, mapPawnsField, spawnedColonyMechs)
}

// ColonyMechCount leaves the number of spawned colony mechanoids of the map
// reached from base through path.
func ColonyMechCount(base splice.Slot, path ...splice.Accessor) splice.Snippet {
	return splice.Chain(base, path...).Then(mapGetter, mapPawnsField, spawnedColonyMechs, pawnListCount)
}
