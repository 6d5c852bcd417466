package splice

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// MethodResolver turns a method identity into a method of the host.
type MethodResolver interface {
	Resolve(id MethodID) (Method, error)
}

// Driver applies catalog descriptors to a host.
//
// Every descriptor is applied on its own: it resolves its own target, edits
// a private copy of the body and commits it with a single Replace. A
// descriptor that fails is logged and skipped and never affects the others.
type Driver struct {
	Resolver MethodResolver
	Bodies   MethodBodyAccessor
	Log      Logger

	// HostVersion is compared with each descriptor's HostVersion. nil
	// disables the check.
	HostVersion *semver.Version

	// Strict panics on InvalidPatch instead of skipping. Catalog tests set
	// it so that defective descriptors fail loudly.
	Strict bool

	disabled   map[string]bool
	categories map[string]bool
}

// NewDriver returns a driver resolving targets with resolver and editing
// bodies through bodies.
func NewDriver(resolver MethodResolver, bodies MethodBodyAccessor) *Driver {
	return &Driver{
		Resolver: resolver,
		Bodies:   bodies,
		Log:      defaultLogger(),
	}
}

// Configure applies cfg to the driver.
func (d *Driver) Configure(cfg *Config) error {
	if cfg.HostVersion != "" {
		v, err := semver.NewVersion(cfg.HostVersion)
		if err != nil {
			return fmt.Errorf("host version %q: %w", cfg.HostVersion, err)
		}
		d.HostVersion = v
	}
	d.Strict = cfg.Strict
	d.Disable(cfg.Disabled...)

	if len(cfg.Categories) > 0 {
		d.categories = map[string]bool{}
		for _, c := range cfg.Categories {
			d.categories[c] = true
		}
	}
	return nil
}

// Disable skips the named descriptors.
func (d *Driver) Disable(names ...string) {
	if d.disabled == nil {
		d.disabled = map[string]bool{}
	}
	for _, n := range names {
		d.disabled[n] = true
	}
}

func (d *Driver) enabled(desc *Descriptor) bool {
	if d.disabled[desc.Name] {
		return false
	}
	return d.categories == nil || d.categories[desc.Category]
}

// Apply applies every descriptor of c in order and returns one outcome per
// descriptor.
func (d *Driver) Apply(c *Catalog) []Outcome {
	descriptors := c.Descriptors()
	outcomes := make([]Outcome, 0, len(descriptors))
	applied := 0

	for _, desc := range descriptors {
		o := d.ApplyOne(desc)
		if o.Applied() {
			applied++
		}
		outcomes = append(outcomes, o)
	}

	d.log().Info("patch pass complete", "applied", applied, "skipped", len(descriptors)-applied)
	return outcomes
}

// ApplyOne applies a single descriptor. It never panics unless Strict is
// set and the descriptor is defective.
func (d *Driver) ApplyOne(desc *Descriptor) (out Outcome) {
	out = Outcome{Descriptor: desc.Name, Target: desc.Target, State: Resolving}

	defer func() {
		if r := recover(); r != nil {
			if d.Strict {
				panic(r)
			}
			out.skip(InvalidPatch, fmt.Errorf("descriptor panicked: %v", r))
		}
		d.report(out)
	}()

	if !d.enabled(desc) {
		out.skip(Disabled, nil)
		return out
	}

	if !desc.supportsHost(d.HostVersion) {
		out.OutsideKnownVersions = true
		d.log().Warning("host version outside known-good range",
			"descriptor", desc.Name, "host", d.HostVersion.String(), "known", desc.HostVersion)
	}

	// Resolving
	method, err := d.Resolver.Resolve(desc.Target)
	if err != nil {
		out.skip(TargetUnresolved, err)
		return out
	}
	body, err := d.Bodies.Body(method)
	if err != nil {
		out.skip(TargetUnresolved, fmt.Errorf("reading body of %v: %w", desc.Target, err))
		return out
	}

	// The host's copy is never touched before commit.
	work := body.Clone()

	out.State = Locating
	anchor, ok := Find(work, desc.Anchor)
	if !ok {
		out.skip(AnchorNotFound, fmt.Errorf("%v in %v: %w", desc.Anchor, desc.Target, ErrAnchorNotFound))
		return out
	}

	out.State = Building
	patched, inserted, err := build(desc, work, anchor)
	if err != nil {
		reason := InvalidPatch
		if errors.Is(err, ErrAnchorNotFound) {
			reason = AnchorNotFound
		}
		d.invalid(&out, reason, err)
		return out
	}

	out.State = Committing
	if err := d.Bodies.Replace(method, patched); err != nil {
		out.skip(CommitFailed, err)
		return out
	}

	out.State = Applied
	out.Inserted = inserted
	return out
}

// build attaches the jump target labels to work, runs the injector and
// inserts its block. The result has been verified.
func build(desc *Descriptor, work Sequence, anchor int) (Sequence, int, error) {
	index := anchor + desc.InsertionOffset
	if index < 0 || index > len(work) {
		return nil, 0, fmt.Errorf("insertion point %d%+d of %d: %w", anchor, desc.InsertionOffset, len(work), ErrIndexOutOfRange)
	}

	lb := NewLabeler(work)
	labels := make([]Label, len(desc.Targets))
	for i, t := range desc.Targets {
		ti, err := t.locate(work, anchor)
		if err != nil {
			return nil, 0, err
		}
		labels[i] = lb.Mint()
		if err := lb.Attach(work, ti, labels[i]); err != nil {
			return nil, 0, err
		}
	}

	block, err := desc.Inject(&Build{
		Anchor:  anchor,
		Index:   index,
		Labels:  labels,
		Labeler: lb,
		Body:    work,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("injector: %w", err)
	}

	patched, err := Insert(work, index, block...)
	if err != nil {
		return nil, 0, err
	}
	if err := Verify(patched); err != nil {
		return nil, 0, err
	}
	return patched, len(block), nil
}

func (d *Driver) invalid(out *Outcome, reason Reason, err error) {
	if reason == InvalidPatch && d.Strict {
		panic(fmt.Errorf("descriptor %q: %w", out.Descriptor, err))
	}
	out.skip(reason, err)
}

func (d *Driver) report(out Outcome) {
	switch {
	case out.Applied():
		d.log().Info("applied", "descriptor", out.Descriptor, "target", out.Target.String(), "inserted", out.Inserted)
	case out.Reason == Disabled:
		d.log().Debug("disabled", "descriptor", out.Descriptor)
	case out.Reason == InvalidPatch || out.Reason == CommitFailed:
		d.log().Error(out.Reason.String(), "descriptor", out.Descriptor, "state", out.FailedAt.String(), "error", out.Err)
	default:
		d.log().Warning(out.Reason.String(), "descriptor", out.Descriptor, "target", out.Target.String(), "error", out.Err)
	}
}
