package native

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

var (
	errUnknownFunc     = errors.New("function not found in the runtime function table")
	errUnsupportedArch = errors.New("machine code editing is not supported on this architecture")
)

// funcValue returns fn as a reflect.Value of kind Func.
func funcValue(fn any) (reflect.Value, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("not a function, kind: %v", v.Kind())
	}
	if v.IsNil() {
		return reflect.Value{}, errors.New("nil function")
	}
	return v, nil
}

// codeOf returns the machine code of the function starting at entry,
// including the compiler's trailing padding.
//
// The length is the distance to the next function in the module's
// function table.
func codeOf(entry uintptr) ([]byte, error) {
	info := findfunc(entry)
	if info._func == nil || info.datap == nil {
		return nil, fmt.Errorf("%#x: %w", entry, errUnknownFunc)
	}

	offset := uint32(entry - info.datap.text)
	length := uint32(info.datap.etext - entry)

	for _, ft := range info.datap.ftab {
		if ft.entryoff <= offset {
			continue
		}
		if d := ft.entryoff - offset; d < length {
			length = d
		}
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(entry)), int(length)), nil
}

func addressOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

func unsafeRegion(start uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(start)), size)
}
