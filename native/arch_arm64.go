package native

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/pboyd/splice"
)

const (
	// | 000101 | imm26 |
	_B = uint32(5 << 26)

	// | 100101 | imm26 |
	_BL = uint32(1<<31 | _B)

	// ADR/ADRP: | P | immlo | 10000 | immhi | Rd |
	adrAddressMask = uint32(3<<29 | 0x7ffff<<5)

	branchRange = 1 << 27

	jumpSize = 4
)

// insertJump writes a B to dest at the start of buf.
func insertJump(buf []byte, dest uintptr) error {
	if len(buf) < jumpSize {
		return errors.New("buffer too small for jump instruction")
	}

	offset := int64(dest) - int64(addressOf(buf))
	if offset < -branchRange || offset >= branchRange {
		return fmt.Errorf("B target out of range: %d bytes exceeds 128MiB", offset)
	}

	binary.LittleEndian.PutUint32(buf, _B|(uint32(offset>>2)&(1<<26-1)))
	return nil
}

// relocate copies the function code into the arena. ADRP and BL refer
// outside the function and are re-encoded for the new address; every other
// PC-relative instruction stays within the function.
func relocate(code []byte) ([]byte, error) {
	return arena.place(len(code), func(dest []byte) ([]byte, error) {
		dest = dest[:len(code)]
		copy(dest, code)

		srcPC := addressOf(code)
		for i := 0; i+4 <= len(code); i += 4 {
			raw := dest[i : i+4]

			inst, err := arm64asm.Decode(raw)
			if err != nil {
				if bytes.Equal(raw, []byte{0, 0, 0, 0}) {
					break
				}
				return nil, fmt.Errorf("decode error at offset %d %v: %w", i, raw, err)
			}

			for _, arg := range inst.Args {
				if _, ok := arg.(arm64asm.PCRel); ok {
					if err := fixPCRel(inst, srcPC+uintptr(i), raw); err != nil {
						return nil, fmt.Errorf("offset %d: %w", i, err)
					}
					break
				}
			}
		}
		return dest, nil
	})
}

func fixPCRel(inst arm64asm.Inst, srcPC uintptr, dest []byte) error {
	destPC := addressOf(dest)

	switch inst.Op {
	case arm64asm.ADRP:
		old := int64(inst.Args[1].(arm64asm.PCRel))
		pages := (int64(srcPC&^0xfff) + old - int64(destPC&^0xfff)) >> 12
		if pages < -(1<<20) || pages >= (1<<20) {
			return fmt.Errorf("ADRP target out of range: %d pages exceeds 4GiB", pages)
		}

		p := uint32(pages)
		encoded := binary.LittleEndian.Uint32(dest) &^ adrAddressMask
		encoded |= (p & 3) << 29
		encoded |= (p >> 2) << 5
		binary.LittleEndian.PutUint32(dest, encoded)

	case arm64asm.BL:
		old := int64(inst.Args[0].(arm64asm.PCRel))
		offset := int64(srcPC) + old - int64(destPC)
		if offset < -branchRange || offset >= branchRange {
			return fmt.Errorf("BL target out of range: %d bytes exceeds 128MiB", offset)
		}
		binary.LittleEndian.PutUint32(dest, _BL|(uint32(offset>>2)&(1<<26-1)))
	}
	return nil
}

func assembleInArena(splice.Sequence) ([]byte, error) {
	return nil, errUnsupportedArch
}

func decodeAt([]byte) (splice.Sequence, error) {
	return nil, errUnsupportedArch
}

func disassemble(code []byte) (string, error) {
	var out []byte
	base := addressOf(code)
	for i := 0; i+4 <= len(code); i += 4 {
		asm := "?"
		if inst, err := arm64asm.Decode(code[i:]); err == nil {
			asm = inst.String()
		}
		out = fmt.Appendf(out, "0x%08x\t%-20s\t%s\n", base+uintptr(i), hex.EncodeToString(code[i:i+4]), asm)
	}
	return string(out), nil
}
