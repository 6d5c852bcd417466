package native

import (
	"reflect"
)

// Redefine makes every call to fn run newFn instead. An error is returned if
// either is not a function or if their signatures differ.
//
// Calls that the compiler inlined are not affected. Mark fn noinline if
// needed:
//
//	//go:noinline
//	func myfunc() {
//		...
//	}
func Redefine(fn, newFn any) error {
	return redefine(fn, newFn, false)
}

// RedefineMethod is Redefine for method expressions. The receivers may be of
// different types of the same size, so a method of one type can be replaced
// by a method of a type with the same layout.
func RedefineMethod(method, newMethod any) error {
	return redefine(method, newMethod, true)
}

func redefine(fn, newFn any, method bool) error {
	fnv, err := funcValue(fn)
	if err != nil {
		return err
	}
	newFnv, err := funcValue(newFn)
	if err != nil {
		return err
	}
	if err := signatureError(fnv.Type(), newFnv.Type(), method); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	p, err := patchFor(fnv.Pointer())
	if err != nil {
		return err
	}
	if err := p.jumpTo(newFnv.Pointer()); err != nil {
		return err
	}
	arena.free(p.body)
	p.body = nil
	return nil
}

// Original returns a function that behaves like fn did before it was
// redefined or its body replaced. If fn is unchanged it is returned as is.
// A nil function is returned if fn isn't a function.
//
// The result runs a relocated copy of the original machine code. It must
// not be called after Restore.
func Original[T any](fn T) T {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func || fnv.IsNil() {
		var zero T
		return zero
	}

	mu.RLock()
	defer mu.RUnlock()

	p, ok := patched[fnv.Pointer()]
	if !ok {
		return fn
	}
	return funcFor[T](p)
}

// Restore undoes Redefine, RedefineMethod or a body replacement of fn.
func Restore(fn any) error {
	fnv, err := funcValue(fn)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	p, ok := patched[fnv.Pointer()]
	if !ok {
		return errNotPatched
	}
	return p.restore()
}
