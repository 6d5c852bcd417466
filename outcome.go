package splice

// State is a step of applying one descriptor.
type State uint8

const (
	Resolving State = iota
	Locating
	Building
	Committing
	Applied
	Skipped
)

var stateNames = [...]string{
	Resolving:  "resolving",
	Locating:   "locating",
	Building:   "building",
	Committing: "committing",
	Applied:    "applied",
	Skipped:    "skipped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Reason explains why a descriptor was skipped.
type Reason uint8

const (
	NoReason Reason = iota
	TargetUnresolved
	AnchorNotFound
	// InvalidPatch means the descriptor itself is wrong: an offset out of
	// range, an injector error, or a result that fails Verify.
	InvalidPatch
	// CommitFailed means the accessor refused the patched body.
	CommitFailed
	Disabled
)

var reasonNames = [...]string{
	NoReason:         "",
	TargetUnresolved: "target unresolved",
	AnchorNotFound:   "anchor not found",
	InvalidPatch:     "invalid patch",
	CommitFailed:     "commit failed",
	Disabled:         "disabled",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Outcome is the result of applying one descriptor. Outcomes are logged
// and returned, never stored.
type Outcome struct {
	Descriptor string
	Target     MethodID

	// State is Applied or Skipped once the descriptor is done. For a
	// skipped descriptor FailedAt is the state it failed in.
	State    State
	FailedAt State
	Reason   Reason
	Err      error

	// Inserted is the number of instructions added.
	Inserted int

	// OutsideKnownVersions is set when the host version doesn't satisfy
	// the descriptor's HostVersion.
	OutsideKnownVersions bool
}

// Applied reports whether the descriptor's change was committed.
func (o Outcome) Applied() bool {
	return o.State == Applied
}

func (o *Outcome) skip(reason Reason, err error) {
	o.FailedAt = o.State
	o.State = Skipped
	o.Reason = reason
	o.Err = err
}
