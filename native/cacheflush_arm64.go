//go:build arm64 && cgo

package native

import "unsafe"

/*
static void flush_icache(char *start, char *end) {
	__builtin___clear_cache(start, end);
}
*/
import "C"

func cacheflush(buf []byte) {
	start := unsafe.Pointer(unsafe.SliceData(buf))
	end := unsafe.Add(start, len(buf))
	C.flush_icache((*C.char)(start), (*C.char)(end))
}
