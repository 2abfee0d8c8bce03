package rv32i

import (
	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

// ABINames are the calling-convention names of x0..x31.
var ABINames = [constants.NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegisterName returns the ABI name of register i, or "x?" when i is out of
// range.
func RegisterName(i int) string {
	if i < 0 || i >= constants.NumRegisters {
		return "x?"
	}
	return ABINames[i]
}

// Registers is the integer register file plus the program counter. x0 reads
// as zero and discards writes. pc is a word index.
type Registers struct {
	x  [constants.NumRegisters]types.Register
	pc types.Register
}

func (r *Registers) Get(i int) (uint32, error) {
	if i < 0 || i >= constants.NumRegisters {
		return 0, errors.Wrapf(ErrInvalidRegister, "read x%d", i)
	}
	if i == 0 {
		return 0, nil
	}
	return uint32(r.x[i]), nil
}

func (r *Registers) Set(i int, v uint32) error {
	if i < 0 || i >= constants.NumRegisters {
		return errors.Wrapf(ErrInvalidRegister, "write x%d", i)
	}
	if i == 0 {
		return nil
	}
	r.x[i] = types.Register(v)
	return nil
}

func (r *Registers) PC() uint32 {
	return uint32(r.pc)
}

func (r *Registers) SetPC(v uint32) {
	r.pc = types.Register(v)
}

// IncrementPC moves to the next instruction slot.
func (r *Registers) IncrementPC() {
	r.pc++
}

// AdvancePC adds a two's-complement offset to the current pc.
func (r *Registers) AdvancePC(offset uint32) {
	r.pc += types.Register(offset)
}

// Values returns x0..x31.
func (r *Registers) Values() [constants.NumRegisters]uint32 {
	var out [constants.NumRegisters]uint32
	for i := 1; i < constants.NumRegisters; i++ {
		out[i] = uint32(r.x[i])
	}
	return out
}

// SetValues overwrites x1..x31; the value given for x0 is ignored.
func (r *Registers) SetValues(v [constants.NumRegisters]uint32) {
	for i := 1; i < constants.NumRegisters; i++ {
		r.x[i] = types.Register(v[i])
	}
}
