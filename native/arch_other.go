//go:build !amd64 && !arm64

package native

import "github.com/pboyd/splice"

const jumpSize = 1

func insertJump([]byte, uintptr) error {
	return errUnsupportedArch
}

func relocate([]byte) ([]byte, error) {
	return nil, errUnsupportedArch
}

func assembleInArena(splice.Sequence) ([]byte, error) {
	return nil, errUnsupportedArch
}

func decodeAt([]byte) (splice.Sequence, error) {
	return nil, errUnsupportedArch
}

func disassemble([]byte) (string, error) {
	return "", errUnsupportedArch
}
