package splice

import "errors"

var (
	// ErrTargetUnresolved means the method a descriptor targets could not
	// be found in the host.
	ErrTargetUnresolved = errors.New("target unresolved")

	// ErrAnchorNotFound means a descriptor's anchor predicate matched no
	// instruction. It usually means the host version changed.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrIndexOutOfRange means an offset computed from an anchor points
	// outside of the sequence.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotBranch means a branch was requested with an opcode that does
	// not branch.
	ErrNotBranch = errors.New("opcode is not a branch")

	// ErrDanglingLabel means a branch refers to a label that is not
	// attached to any instruction of the sequence.
	ErrDanglingLabel = errors.New("dangling label")

	// ErrDuplicateLabel means a label is attached to more than one
	// instruction.
	ErrDuplicateLabel = errors.New("label attached more than once")

	// ErrStackUnderflow means a snippet consumes more values than it
	// produced.
	ErrStackUnderflow = errors.New("evaluation stack underflow")

	// ErrUnknownStackEffect means the stack effect of an instruction could
	// not be determined.
	ErrUnknownStackEffect = errors.New("unknown stack effect")
)
