package native

import (
	"errors"
	"fmt"
	"reflect"
)

// signatureError lists the differences between two function types.
func signatureError(a, b reflect.Type, skipReceiver bool) error {
	errs := []error{}

	start := 0
	if skipReceiver {
		start = 1
		if a.NumIn() == 0 || b.NumIn() == 0 {
			return errors.New("method without a receiver")
		}
		if a.In(0).Size() != b.In(0).Size() {
			errs = append(errs, fmt.Errorf("receiver: %v != %v", a.In(0), b.In(0)))
		}
	}

	for i := start; i < max(a.NumIn(), b.NumIn()); i++ {
		x, y := typeAt(a.In, a.NumIn(), i), typeAt(b.In, b.NumIn(), i)
		if x != y {
			errs = append(errs, fmt.Errorf("argument %d: %v != %v", i, x, y))
		}
	}
	for i := 0; i < max(a.NumOut(), b.NumOut()); i++ {
		x, y := typeAt(a.Out, a.NumOut(), i), typeAt(b.Out, b.NumOut(), i)
		if x != y {
			errs = append(errs, fmt.Errorf("output %d: %v != %v", i, x, y))
		}
	}
	if a.IsVariadic() != b.IsVariadic() {
		errs = append(errs, errors.New("variadic mismatch"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("function signatures do not match: %w", errors.Join(errs...))
}

func typeAt(get func(int) reflect.Type, n, i int) reflect.Type {
	if i >= n {
		return nil
	}
	return get(i)
}
