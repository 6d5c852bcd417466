package native

import (
	"fmt"

	"github.com/pboyd/splice"
)

// Accessor reads and replaces the machine code of registered functions.
// Only amd64 code can be decoded.
type Accessor struct{}

var _ splice.MethodBodyAccessor = Accessor{}

func funcOf(m splice.Method) (*Func, error) {
	f, ok := m.(*Func)
	if !ok {
		return nil, fmt.Errorf("%v: not a native function", m.ID())
	}
	return f, nil
}

// Body decodes the code the function currently runs: its replacement body
// if it has one, otherwise its own code.
func (Accessor) Body(m splice.Method) (splice.Sequence, error) {
	f, err := funcOf(m)
	if err != nil {
		return nil, err
	}
	code, err := currentCode(f.entry)
	if err != nil {
		return nil, err
	}
	seq, err := decodeAt(code)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", f.id, err)
	}
	return seq, nil
}

// Replace assembles seq into the code arena and makes the function's entry
// jump to it.
func (Accessor) Replace(m splice.Method, seq splice.Sequence) error {
	f, err := funcOf(m)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	p, err := patchFor(f.entry)
	if err != nil {
		return err
	}
	body, err := assembleInArena(seq)
	if err != nil {
		return fmt.Errorf("%v: %w", f.id, err)
	}
	return p.setBody(body)
}

// currentCode returns the code executed when the function at entry is
// called.
func currentCode(entry uintptr) ([]byte, error) {
	mu.RLock()
	defer mu.RUnlock()

	p, ok := patched[entry]
	switch {
	case !ok:
		return codeOf(entry)
	case p.body != nil:
		return p.body, nil
	default:
		return codeOf(p.target)
	}
}
