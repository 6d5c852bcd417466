package native

import "golang.org/x/sys/unix"

// The arena is mapped in the low 2GB, next to the program text, so that
// rel32 calls and RIP-relative operands of relocated code stay in range.
const arenaMapFlags = unix.MAP_32BIT
