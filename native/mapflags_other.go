//go:build !(linux && amd64)

package native

// Elsewhere the OS picks the arena address. Relocation fails with an error
// if it lands out of rel32 range.
const arenaMapFlags = 0
