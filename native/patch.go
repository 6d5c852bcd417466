package native

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var errNotPatched = errors.New("function has not been redefined")

// patch is the state of one function whose entry jumps elsewhere.
type patch struct {
	entry uintptr

	// saved holds the bytes overwritten by the jump.
	saved []byte

	// target is where the entry jumps to. body is set when the target is
	// code placed in the arena by Replace.
	target uintptr
	body   []byte

	// clone is a relocated copy of the original code. cloneFn points at a
	// word holding its address, which is the layout of a func value.
	clone   []byte
	cloneFn *uintptr
}

var (
	mu      sync.RWMutex
	patched = map[uintptr]*patch{}
)

// patchFor returns the patch for the function at entry, creating it, along
// with the clone of the original code, on first use. mu must be held.
func patchFor(entry uintptr) (*patch, error) {
	if p, ok := patched[entry]; ok {
		return p, nil
	}

	code, err := codeOf(entry)
	if err != nil {
		return nil, err
	}
	if len(code) < jumpSize {
		return nil, fmt.Errorf("%#x: function too small to patch", entry)
	}

	clone, err := relocate(code)
	if err != nil {
		return nil, fmt.Errorf("cloning original code: %w", err)
	}

	p := &patch{
		entry:   entry,
		saved:   copyBytes(code[:jumpSize]),
		clone:   clone,
		cloneFn: new(uintptr),
	}
	*p.cloneFn = addressOf(clone)
	patched[entry] = p
	return p, nil
}

// jumpTo points the entry of p at dest. mu must be held.
func (p *patch) jumpTo(dest uintptr) error {
	if err := writeEntry(p.entry, func(buf []byte) error {
		return insertJump(buf, dest)
	}); err != nil {
		return err
	}
	p.target = dest
	return nil
}

// setBody replaces the arena code p jumps to, freeing the previous body.
func (p *patch) setBody(body []byte) error {
	if err := p.jumpTo(addressOf(body)); err != nil {
		arena.free(body)
		return err
	}
	arena.free(p.body)
	p.body = body
	return nil
}

// restore writes back the original entry and releases everything p owns.
// The clone returned by Original is invalid afterwards.
func (p *patch) restore() error {
	if err := writeEntry(p.entry, func(buf []byte) error {
		copy(buf, p.saved)
		return nil
	}); err != nil {
		return err
	}

	arena.free(p.body)
	arena.free(p.clone)
	*p.cloneFn = 0
	p.body, p.clone = nil, nil
	delete(patched, p.entry)
	return nil
}

func writeEntry(entry uintptr, write func([]byte) error) error {
	buf := unsafeRegion(entry, jumpSize)

	if err := mprotect(buf, protRWX); err != nil {
		return err
	}
	defer mprotect(buf, protRX)

	if err := write(buf); err != nil {
		return err
	}
	cacheflush(buf)
	return nil
}

// funcFor reinterprets p's clone as a function of type T.
func funcFor[T any](p *patch) T {
	return *(*T)(unsafe.Pointer(&p.cloneFn))
}
