package rv32i

import (
	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/serializer"
)

// InstructionHandler executes one decoded instruction. pc still holds the
// address of the instruction; each handler leaves it at the next one. A
// handler that fails must not have touched pc.
type InstructionHandler func(m *Machine, d *Decoded) error

var dispatchTable [numOperations]InstructionHandler

func init() {
	for op := OpLUI; op < numOperations; op++ {
		switch op.Class() {
		case ClassUpper:
			dispatchTable[op] = handleUpper
		case ClassBranch:
			dispatchTable[op] = handleBranch
		case ClassLoad:
			dispatchTable[op] = handleLoad
		case ClassStore:
			dispatchTable[op] = handleStore
		case ClassALUImm:
			dispatchTable[op] = handleOpImm
		case ClassALUReg:
			dispatchTable[op] = handleOp
		case ClassFence:
			dispatchTable[op] = handleFence
		case ClassSystem:
			dispatchTable[op] = handleSystem
		case ClassJump:
			if op == OpJAL {
				dispatchTable[op] = handleJAL
			} else {
				dispatchTable[op] = handleJALR
			}
		}
	}
}

func (m *Machine) operands(d *Decoded) (a, b uint32, err error) {
	if a, err = m.Registers.Get(int(d.Rs1)); err != nil {
		return 0, 0, err
	}
	if b, err = m.Registers.Get(int(d.Rs2)); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func handleUpper(m *Machine, d *Decoded) error {
	v := d.Imm
	if d.Op == OpAUIPC {
		v += m.Registers.PC()
	}
	if err := m.Registers.Set(int(d.Rd), v); err != nil {
		return err
	}
	m.Registers.IncrementPC()
	return nil
}

func handleJAL(m *Machine, d *Decoded) error {
	if err := m.Registers.Set(int(d.Rd), m.Registers.PC()+1); err != nil {
		return err
	}
	m.Registers.AdvancePC(d.Imm)
	return nil
}

func handleJALR(m *Machine, d *Decoded) error {
	base, err := m.Registers.Get(int(d.Rs1))
	if err != nil {
		return err
	}
	// The target is fixed before rd is written so rd == rs1 works.
	target := (base + d.Imm) &^ 1
	if err := m.Registers.Set(int(d.Rd), m.Registers.PC()+1); err != nil {
		return err
	}
	m.Registers.SetPC(target)
	return nil
}

func handleBranch(m *Machine, d *Decoded) error {
	a, b, err := m.operands(d)
	if err != nil {
		return err
	}
	var taken bool
	switch d.Op {
	case OpBEQ:
		taken = a == b
	case OpBNE:
		taken = a != b
	case OpBLT:
		taken = int32(a) < int32(b)
	case OpBGE:
		taken = int32(a) >= int32(b)
	case OpBLTU:
		taken = a < b
	case OpBGEU:
		taken = a >= b
	default:
		return errors.Wrapf(ErrDecode, "%s is not a branch", d.Op)
	}
	if taken {
		m.Registers.AdvancePC(d.Imm)
	} else {
		m.Registers.IncrementPC()
	}
	return nil
}

func handleLoad(m *Machine, d *Decoded) error {
	base, err := m.Registers.Get(int(d.Rs1))
	if err != nil {
		return err
	}
	word, err := m.RAM.Inspect(base + d.Imm)
	if err != nil {
		return err
	}
	var v uint32
	switch d.Op {
	case OpLB:
		v = serializer.SignExtend(word&0xFF, 8)
	case OpLH:
		v = serializer.SignExtend(word&0xFFFF, 16)
	case OpLW:
		v = word
	case OpLBU:
		v = word & 0xFF
	case OpLHU:
		v = word & 0xFFFF
	default:
		return errors.Wrapf(ErrDecode, "%s is not a load", d.Op)
	}
	if err := m.Registers.Set(int(d.Rd), v); err != nil {
		return err
	}
	m.Registers.IncrementPC()
	return nil
}

// handleStore replaces the whole addressed word with the masked value.
func handleStore(m *Machine, d *Decoded) error {
	base, v, err := m.operands(d)
	if err != nil {
		return err
	}
	switch d.Op {
	case OpSB:
		v &= 0xFF
	case OpSH:
		v &= 0xFFFF
	case OpSW:
	default:
		return errors.Wrapf(ErrDecode, "%s is not a store", d.Op)
	}
	if err := m.RAM.Mutate(base+d.Imm, v); err != nil {
		return err
	}
	m.Registers.IncrementPC()
	return nil
}

func handleOpImm(m *Machine, d *Decoded) error {
	a, err := m.Registers.Get(int(d.Rs1))
	if err != nil {
		return err
	}
	imm := d.Imm
	var v uint32
	switch d.Op {
	case OpADDI:
		v = a + imm
	case OpSLTI:
		v = boolToWord(int32(a) < int32(imm))
	case OpSLTIU:
		v = boolToWord(a < imm)
	case OpXORI:
		v = a ^ imm
	case OpORI:
		v = a | imm
	case OpANDI:
		v = a & imm
	case OpSLLI:
		v = a << (imm & 0x1F)
	case OpSRLI:
		v = a >> (imm & 0x1F)
	case OpSRAI:
		v = uint32(int32(a) >> (imm & 0x1F))
	default:
		return errors.Wrapf(ErrDecode, "%s is not an immediate operation", d.Op)
	}
	if err := m.Registers.Set(int(d.Rd), v); err != nil {
		return err
	}
	m.Registers.IncrementPC()
	return nil
}

func handleOp(m *Machine, d *Decoded) error {
	a, b, err := m.operands(d)
	if err != nil {
		return err
	}
	shamt := b & 0x1F
	var v uint32
	switch d.Op {
	case OpADD:
		v = a + b
	case OpSUB:
		v = a - b
	case OpSLL:
		v = a << shamt
	case OpSLT:
		v = boolToWord(int32(a) < int32(b))
	case OpSLTU:
		v = boolToWord(a < b)
	case OpXOR:
		v = a ^ b
	case OpSRL:
		v = a >> shamt
	case OpSRA:
		v = uint32(int32(a) >> shamt)
	case OpOR:
		v = a | b
	case OpAND:
		v = a & b
	default:
		return errors.Wrapf(ErrDecode, "%s is not a register operation", d.Op)
	}
	if err := m.Registers.Set(int(d.Rd), v); err != nil {
		return err
	}
	m.Registers.IncrementPC()
	return nil
}

// No caches are modelled, so a validated fence only moves pc.
func handleFence(m *Machine, d *Decoded) error {
	m.Registers.IncrementPC()
	return nil
}

func handleSystem(m *Machine, d *Decoded) error {
	return errors.Wrapf(ErrNotImplemented, "%s", d.Op)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
