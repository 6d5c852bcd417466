//go:build unix

package native

import "golang.org/x/sys/unix"

const (
	protExec = unix.PROT_EXEC
	protRX   = unix.PROT_READ | unix.PROT_EXEC
	protRWX  = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
)

// mprotect changes the protection of every page overlapping buf.
func mprotect(buf []byte, prot int) error {
	pageSize := unix.Getpagesize()
	addr := addressOf(buf)

	pageStart := addr &^ (uintptr(pageSize) - 1)
	regionSize := (int(addr-pageStart) + cap(buf) + pageSize - 1) &^ (pageSize - 1)

	return unix.Mprotect(unsafeRegion(pageStart, regionSize), prot)
}
