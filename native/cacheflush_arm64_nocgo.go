//go:build arm64 && !cgo

package native

// Flushing the instruction cache on arm64 needs the C builtin. Build with
// CGO_ENABLED=1.
func cacheflush(buf []byte) {
	native_arm64_requires_cgo()
}
