package rv32i

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
)

var (
	ErrDecode          = errors.New("decode failure")
	ErrNotImplemented  = errors.New("instruction not implemented")
	ErrOutOfRange      = ram.ErrOutOfRange
	ErrInvalidRegister = errors.New("invalid register index")
	ErrUsage           = errors.New("usage error")
)

type FaultKind uint8

const (
	FaultDecode FaultKind = iota
	FaultNotImplemented
	FaultOutOfRange
	FaultInvalidRegister
)

func (k FaultKind) String() string {
	switch k {
	case FaultDecode:
		return "decode"
	case FaultNotImplemented:
		return "not-implemented"
	case FaultOutOfRange:
		return "out-of-range"
	case FaultInvalidRegister:
		return "invalid-register"
	default:
		return fmt.Sprintf("FaultKind(%d)", uint8(k))
	}
}

// Fault stops a run. PC is the address of the instruction that raised it.
type Fault struct {
	Kind  FaultKind
	PC    uint32
	Word  uint32
	Op    Operation
	Cause error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault at pc=%#x word=%#08x: %v", f.Kind, f.PC, f.Word, f.Cause)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// IsFault checks if an error is a machine fault
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

func decodeFault(word uint32, format string, args ...interface{}) error {
	return &Fault{
		Kind:  FaultDecode,
		Word:  word,
		Cause: errors.Wrapf(ErrDecode, format, args...),
	}
}

// newFault classifies err and attaches the faulting instruction.
func newFault(pc uint32, d Decoded, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		f.PC = pc
		f.Word = uint32(d.Word)
		f.Op = d.Op
		return f
	}
	kind := FaultDecode
	switch {
	case errors.Is(err, ErrNotImplemented):
		kind = FaultNotImplemented
	case errors.Is(err, ErrOutOfRange):
		kind = FaultOutOfRange
	case errors.Is(err, ErrInvalidRegister):
		kind = FaultInvalidRegister
	}
	return &Fault{Kind: kind, PC: pc, Word: uint32(d.Word), Op: d.Op, Cause: err}
}
