// Package memhost is a host program held in memory: types, their nested
// compiler-generated types and methods with instruction bodies.
//
// It's the host the catalog is measured against and the one tests patch.
package memhost

import (
	"fmt"
	"sync"

	"github.com/pboyd/splice"
)

// Program is a set of top-level types.
type Program struct {
	Version string

	mu    sync.Mutex
	types map[string]*Type
}

// New returns an empty program.
func New(version string) *Program {
	return &Program{
		Version: version,
		types:   map[string]*Type{},
	}
}

// Type is a host type. Nested types hang off their declaring type.
type Type struct {
	name    string
	path    []string
	inner   map[string]*Type
	methods map[string]*Method
}

// Method is a method with a body.
type Method struct {
	id       splice.MethodID
	body     splice.Sequence
	replaced int
}

// DefineType adds, or returns the existing, top-level type name.
func (p *Program) DefineType(name string) *Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.types[name]; ok {
		return t
	}
	t := newType(name, nil)
	p.types[name] = t
	return t
}

// DefineMethod adds a method at id, creating any missing types on the way.
// The body is copied.
func (p *Program) DefineMethod(id splice.MethodID, body splice.Sequence) *Method {
	t := p.DefineType(id.Type)
	for _, scope := range id.Scopes {
		t = t.DefineInner(scope)
	}
	return t.DefineMethod(id.Method, body)
}

func newType(name string, parent []string) *Type {
	path := append(append([]string(nil), parent...), name)
	return &Type{
		name:    name,
		path:    path,
		inner:   map[string]*Type{},
		methods: map[string]*Method{},
	}
}

// DefineInner adds, or returns the existing, nested type name.
func (t *Type) DefineInner(name string) *Type {
	if in, ok := t.inner[name]; ok {
		return in
	}
	in := newType(name, t.path)
	t.inner[name] = in
	return in
}

// DefineMethod adds a method to t. The body is copied.
func (t *Type) DefineMethod(name string, body splice.Sequence) *Method {
	m := &Method{
		id: splice.MethodID{
			Type:   t.path[0],
			Scopes: append([]string(nil), t.path[1:]...),
			Method: name,
		},
		body: body.Clone(),
	}
	t.methods[name] = m
	return m
}

// LookupType implements splice.Host.
func (p *Program) LookupType(name string) (splice.Type, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.types[name]
	if !ok {
		return nil, false
	}
	return t, true
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) Inner(name string) (splice.Type, bool) {
	in, ok := t.inner[name]
	if !ok {
		return nil, false
	}
	return in, true
}

func (t *Type) Method(name string) (splice.Method, bool) {
	m, ok := t.methods[name]
	if !ok {
		return nil, false
	}
	return m, true
}

func (m *Method) ID() splice.MethodID {
	return m.id
}

// Replacements returns how many times the body of m was replaced.
func (m *Method) Replacements() int {
	return m.replaced
}

// Body implements splice.MethodBodyAccessor. Every call returns a fresh
// copy, so two reads of an unpatched method are equal but independent.
func (p *Program) Body(sm splice.Method) (splice.Sequence, error) {
	m, err := p.method(sm)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return m.body.Clone(), nil
}

// Replace implements splice.MethodBodyAccessor.
func (p *Program) Replace(sm splice.Method, seq splice.Sequence) error {
	m, err := p.method(sm)
	if err != nil {
		return err
	}
	if err := splice.Verify(seq); err != nil {
		return fmt.Errorf("replacing %v: %w", m.id, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m.body = seq
	m.replaced++
	return nil
}

func (p *Program) method(sm splice.Method) (*Method, error) {
	m, ok := sm.(*Method)
	if !ok {
		return nil, fmt.Errorf("%v is not a memhost method", sm.ID())
	}
	return m, nil
}

// Snapshot returns a copy of the current body of the method at id.
func (p *Program) Snapshot(id splice.MethodID) (splice.Sequence, error) {
	m, err := splice.NewResolver(p).Resolve(id)
	if err != nil {
		return nil, err
	}
	return p.Body(m)
}
