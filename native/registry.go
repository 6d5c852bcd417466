package native

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pboyd/splice"
)

// Func is a Go function registered under a method identity.
type Func struct {
	id    splice.MethodID
	entry uintptr
	typ   reflect.Type
}

func (f *Func) ID() splice.MethodID { return f.id }

// Entry is the address of the function's first instruction.
func (f *Func) Entry() uintptr { return f.entry }

func (f *Func) Type() reflect.Type { return f.typ }

// Listing disassembles the code f currently runs.
func (f *Func) Listing() (string, error) {
	code, err := currentCode(f.entry)
	if err != nil {
		return "", err
	}
	return disassemble(code)
}

type funcType struct {
	name    string
	inner   map[string]*funcType
	methods map[string]*Func
}

func newFuncType(name string) *funcType {
	return &funcType{
		name:    name,
		inner:   map[string]*funcType{},
		methods: map[string]*Func{},
	}
}

func (t *funcType) Name() string { return t.name }

func (t *funcType) Inner(name string) (splice.Type, bool) {
	inner, ok := t.inner[name]
	if !ok {
		return nil, false
	}
	return inner, true
}

func (t *funcType) Method(name string) (splice.Method, bool) {
	m, ok := t.methods[name]
	if !ok {
		return nil, false
	}
	return m, true
}

// Registry maps method identities to Go functions. It is the splice.Host
// of a process patching itself.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*funcType
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]*funcType{}}
}

// Register binds id to fn. Identities with scopes create the nested types
// on the way.
func (r *Registry) Register(id splice.MethodID, fn any) (*Func, error) {
	v, err := funcValue(fn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[id.Type]
	if !ok {
		t = newFuncType(id.Type)
		r.types[id.Type] = t
	}
	for _, scope := range id.Scopes {
		inner, ok := t.inner[scope]
		if !ok {
			inner = newFuncType(scope)
			t.inner[scope] = inner
		}
		t = inner
	}
	if _, exists := t.methods[id.Method]; exists {
		return nil, fmt.Errorf("%v: already registered", id)
	}

	f := &Func{id: id, entry: v.Pointer(), typ: v.Type()}
	t.methods[id.Method] = f
	return f, nil
}

func (r *Registry) LookupType(name string) (splice.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, false
	}
	return t, true
}
