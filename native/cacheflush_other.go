//go:build !arm64

package native

func cacheflush([]byte) {}
