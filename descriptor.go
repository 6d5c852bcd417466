package splice

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// JumpTarget says which existing instruction receives a new label. Offset is
// relative to the anchor. When Anchor is set the target is located on its
// own instead, as the first instruction matching it.
type JumpTarget struct {
	Offset int
	Anchor Predicate
}

// JumpTargetOffset targets the instruction at anchor+offset.
func JumpTargetOffset(offset int) JumpTarget {
	return JumpTarget{Offset: offset}
}

// FirstMatch targets the first instruction matching pred.
func FirstMatch(pred Predicate) JumpTarget {
	return JumpTarget{Anchor: pred}
}

func (t JumpTarget) locate(seq Sequence, anchor int) (int, error) {
	if t.Anchor != nil {
		i, ok := Find(seq, t.Anchor)
		if !ok {
			return NotFound, fmt.Errorf("jump target %v: %w", t.Anchor, ErrAnchorNotFound)
		}
		return i, nil
	}
	i := anchor + t.Offset
	if i < 0 || i >= len(seq) {
		return NotFound, fmt.Errorf("jump target %d%+d of %d: %w", anchor, t.Offset, len(seq), ErrIndexOutOfRange)
	}
	return i, nil
}

// Build is handed to a descriptor's injector.
type Build struct {
	// Anchor is the located index, Index the insertion index computed from
	// it.
	Anchor int
	Index  int

	// Labels holds one freshly minted label per JumpTarget of the
	// descriptor, in order, each already attached to its target.
	Labels []Label

	// Labeler mints further labels, typically attached to instructions of
	// the injected block itself.
	Labeler *Labeler

	// Body is the working copy of the method. Injectors may read it but
	// must not change it.
	Body Sequence
}

// Label returns the i-th jump target label.
func (b *Build) Label(i int) Label {
	return b.Labels[i]
}

// Branch builds a branch to l. Injectors pass constant opcodes, so an
// invalid opcode is a defect and panics.
func (b *Build) Branch(op Opcode, l Label) *Instruction {
	return b.Labeler.MustBranch(op, l)
}

// InjectFunc produces the instructions inserted by a descriptor.
type InjectFunc func(b *Build) (Snippet, error)

// Descriptor declares one patch: which method, where to anchor, what to
// insert and which instructions become jump targets.
//
// InsertionOffset and the jump target offsets are distances from the anchor
// measured against a known compiled shape of the target. HostVersion is a
// semver constraint naming the host versions that shape was measured on.
type Descriptor struct {
	Name     string
	Category string

	Target          MethodID
	Anchor          Predicate
	InsertionOffset int
	Targets         []JumpTarget
	Inject          InjectFunc

	HostVersion string
}

func (d *Descriptor) validate() error {
	errs := []error{}
	if d.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if d.Target.Type == "" || d.Target.Method == "" {
		errs = append(errs, errors.New("incomplete target"))
	}
	if d.Anchor == nil {
		errs = append(errs, errors.New("missing anchor"))
	}
	if d.Inject == nil {
		errs = append(errs, errors.New("missing injector"))
	}
	if d.HostVersion != "" {
		if _, err := semver.NewConstraint(d.HostVersion); err != nil {
			errs = append(errs, fmt.Errorf("host version: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("descriptor %q: %w", d.Name, err)
	}
	return nil
}

// supportsHost reports whether v satisfies the descriptor's HostVersion. A
// descriptor without a constraint, or a nil version, is always supported.
func (d *Descriptor) supportsHost(v *semver.Version) bool {
	if d.HostVersion == "" || v == nil {
		return true
	}
	c, err := semver.NewConstraint(d.HostVersion)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// Catalog is an ordered set of descriptors with unique names.
type Catalog struct {
	descriptors []*Descriptor
	byName      map[string]*Descriptor
}

// NewCatalog returns a catalog holding descriptors in order.
func NewCatalog(descriptors ...*Descriptor) (*Catalog, error) {
	c := &Catalog{byName: map[string]*Descriptor{}}
	for _, d := range descriptors {
		if err := c.Add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends d to the catalog.
func (c *Catalog) Add(d *Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, exists := c.byName[d.Name]; exists {
		return fmt.Errorf("descriptor %q already registered", d.Name)
	}
	c.descriptors = append(c.descriptors, d)
	c.byName[d.Name] = d
	return nil
}

// Descriptors returns the descriptors in registration order.
func (c *Catalog) Descriptors() []*Descriptor {
	return slices.Clone(c.descriptors)
}

// Lookup returns the descriptor with the given name.
func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Category returns the descriptors of one category.
func (c *Catalog) Category(name string) []*Descriptor {
	var out []*Descriptor
	for _, d := range c.descriptors {
		if d.Category == name {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}
