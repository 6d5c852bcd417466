//go:build windows

package native

import (
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	protExec = windows.PAGE_EXECUTE
	protRX   = windows.PAGE_EXECUTE_READ
	protRWX  = windows.PAGE_EXECUTE_READWRITE
)

// mprotect changes the protection of every page overlapping buf.
func mprotect(buf []byte, prot int) error {
	pageSize := syscall.Getpagesize()
	addr := addressOf(buf)

	pageStart := addr &^ (uintptr(pageSize) - 1)
	regionSize := (int(addr-pageStart) + cap(buf) + pageSize - 1) &^ (pageSize - 1)

	var old uint32
	return windows.VirtualProtect(pageStart, uintptr(regionSize), uint32(prot), &old)
}
