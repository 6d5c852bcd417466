package splice

import (
	"errors"
	"fmt"
	"strings"
)

// MethodID identifies a method of the host. Scopes lists the nested types,
// usually compiler generated (closure classes, iterator state machines),
// between Type and the method.
type MethodID struct {
	Type   string
	Scopes []string
	Method string
}

func (id MethodID) String() string {
	parts := make([]string, 0, len(id.Scopes)+1)
	parts = append(parts, id.Type)
	parts = append(parts, id.Scopes...)
	return strings.Join(parts, "/") + "::" + id.Method
}

// Method is a resolved method of the host. Backends define what the handle
// points at.
type Method interface {
	ID() MethodID
}

// Host is the part of the host program's type system needed to resolve
// method identities.
type Host interface {
	// LookupType returns the top-level type with the given name.
	LookupType(name string) (Type, bool)
}

// Type is a host type.
type Type interface {
	Name() string
	// Inner returns a nested type by name.
	Inner(name string) (Type, bool)
	// Method returns a method declared on this type.
	Method(name string) (Method, bool)
}

// MethodBodyAccessor reads and replaces method bodies.
type MethodBodyAccessor interface {
	// Body returns a copy of the current instruction sequence of m.
	Body(m Method) (Sequence, error)
	// Replace installs seq as the body of m. The host executes the
	// replacement on the next invocation of m.
	Replace(m Method, seq Sequence) error
}

// Strategy is one way of resolving a MethodID.
type Strategy interface {
	Resolve(host Host, id MethodID) (Method, error)
	String() string
}

// DirectLookup finds the method on the top-level type. It only applies to
// identities without scopes.
type DirectLookup struct{}

func (DirectLookup) Resolve(host Host, id MethodID) (Method, error) {
	if len(id.Scopes) > 0 {
		return nil, fmt.Errorf("direct lookup: %v has nested scopes", id)
	}
	t, ok := host.LookupType(id.Type)
	if !ok {
		return nil, fmt.Errorf("direct lookup: no type %q", id.Type)
	}
	m, ok := t.Method(id.Method)
	if !ok {
		return nil, fmt.Errorf("direct lookup: no method %q on %s", id.Method, id.Type)
	}
	return m, nil
}

func (DirectLookup) String() string { return "direct" }

// NestedScope walks id.Scopes from the top-level type down to the type that
// declares the method.
type NestedScope struct{}

func (NestedScope) Resolve(host Host, id MethodID) (Method, error) {
	t, ok := host.LookupType(id.Type)
	if !ok {
		return nil, fmt.Errorf("nested scope: no type %q", id.Type)
	}
	for _, scope := range id.Scopes {
		inner, ok := t.Inner(scope)
		if !ok {
			return nil, fmt.Errorf("nested scope: no type %q in %s", scope, t.Name())
		}
		t = inner
	}
	m, ok := t.Method(id.Method)
	if !ok {
		return nil, fmt.Errorf("nested scope: no method %q on %s", id.Method, t.Name())
	}
	return m, nil
}

func (NestedScope) String() string { return "nested" }

// Resolver tries each strategy in order and returns the first method found.
type Resolver struct {
	Host       Host
	Strategies []Strategy
}

// NewResolver returns a resolver trying a direct lookup, then a nested scope
// traversal.
func NewResolver(host Host) *Resolver {
	return &Resolver{
		Host:       host,
		Strategies: []Strategy{DirectLookup{}, NestedScope{}},
	}
}

// Resolve returns the method identified by id. The error wraps
// ErrTargetUnresolved along with the reason each strategy failed.
func (r *Resolver) Resolve(id MethodID) (Method, error) {
	errs := make([]error, 0, len(r.Strategies))
	for _, s := range r.Strategies {
		m, err := s.Resolve(r.Host, id)
		if err == nil {
			return m, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%v: %w: no strategies", id, ErrTargetUnresolved)
	}
	return nil, fmt.Errorf("%v: %w: %w", id, ErrTargetUnresolved, errors.Join(errs...))
}
