package native

import (
	"encoding/binary"
	"errors"

	"github.com/pboyd/splice"
)

const jumpSize = jmpSize

// insertJump writes a JMP rel32 to dest at the start of buf.
func insertJump(buf []byte, dest uintptr) error {
	if len(buf) < jumpSize {
		return errors.New("buffer too small for jump instruction")
	}

	rel, err := rel32(int64(addressOf(buf))+jumpSize, int64(dest))
	if err != nil {
		return err
	}
	buf[0] = opcodeJMPrel
	binary.LittleEndian.PutUint32(buf[1:], rel)
	return nil
}

// relocate copies the function code into the arena, adjusting every
// relative address for its new location.
func relocate(code []byte) ([]byte, error) {
	seq, err := Decode(code, addressOf(code))
	if err != nil {
		return nil, err
	}
	return assembleInArena(seq)
}

func assembleInArena(seq splice.Sequence) ([]byte, error) {
	size, err := AssembledSize(seq)
	if err != nil {
		return nil, err
	}
	return arena.place(size, func(buf []byte) ([]byte, error) {
		return Assemble(seq, addressOf(buf), buf)
	})
}

// decodeAt decodes the function code at its current address.
func decodeAt(code []byte) (splice.Sequence, error) {
	return Decode(code, addressOf(code))
}

func disassemble(code []byte) (string, error) {
	return Disassemble(code, addressOf(code))
}
