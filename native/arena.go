package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/malloc"
)

// codeArena holds relocated and patched function bodies. The backing pages
// are executable; they are only writable between beginWrite and endWrite.
type codeArena struct {
	*malloc.Arena
	protect func(int) error

	mu       sync.Mutex
	initOnce sync.Once
	writable bool
}

var arena = &codeArena{}

func (a *codeArena) init(size int) error {
	var err error
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(protExec), malloc.MmapFlags(arenaMapFlags))
		if pbe, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.protect = pbe.Protect
		} else {
			a.protect = func(int) error { return nil }
		}

		a.Arena = malloc.NewArena(uint64(size), malloc.Backend(be))
		if a.Arena == nil {
			err = errors.New("unable to initialize code arena")
			return
		}
		a.writable = true
	})
	return err
}

func (a *codeArena) beginWrite() error {
	if a.protect == nil || a.writable {
		return nil
	}
	if err := a.protect(protRWX); err != nil {
		return err
	}
	a.writable = true
	return nil
}

func (a *codeArena) endWrite() error {
	if !a.writable {
		return nil
	}
	if err := a.protect(protRX); err != nil {
		return err
	}
	a.writable = false
	return nil
}

// place allocates size bytes and lets fill write the code once the final
// address is known. fill returns the bytes actually used, which must fit.
func (a *codeArena) place(size int, fill func(buf []byte) ([]byte, error)) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.init(size); err != nil {
		return nil, err
	}
	if err := a.beginWrite(); err != nil {
		return nil, fmt.Errorf("making code arena writable: %w", err)
	}
	defer a.endWrite()

	buf, err := malloc.MallocSlice[byte](a.Arena, size)
	if err != nil {
		return nil, err
	}

	code, err := fill(buf)
	if err != nil {
		malloc.FreeSlice(a.Arena, buf)
		return nil, err
	}
	if addressOf(code) != addressOf(buf) || len(code) > len(buf) {
		malloc.FreeSlice(a.Arena, buf)
		return nil, errors.New("code does not fit its allocation")
	}

	cacheflush(buf)
	return buf[:len(code)], nil
}

func (a *codeArena) free(buf []byte) {
	if buf == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.beginWrite(); err != nil {
		return
	}
	defer a.endWrite()

	malloc.FreeSlice(a.Arena, buf[:cap(buf)])
}
