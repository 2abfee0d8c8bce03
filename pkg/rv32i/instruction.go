package rv32i

import (
	"fmt"

	"github.com/alexanderKus/risc-v-emulator/pkg/serializer"
)

// Instruction is a raw 32-bit instruction word.
type Instruction uint32

// Field masks are in place; each accessor masks first and then shifts.
const (
	opcodeMask  uint32 = 0x0000_007F
	rdMask      uint32 = 0x0000_0F80
	funct3Mask  uint32 = 0x0000_7000
	rs1Mask     uint32 = 0x000F_8000
	rs2Mask     uint32 = 0x01F0_0000
	funct7Mask  uint32 = 0xFE00_0000
	funct12Mask uint32 = 0xFFF0_0000
	upperMask   uint32 = 0xFFFF_F000

	rdShift      = 7
	funct3Shift  = 12
	rs1Shift     = 15
	rs2Shift     = 20
	funct7Shift  = 25
	funct12Shift = 20
)

// field returns (word & mask) >> shift.
func (in Instruction) field(mask uint32, shift uint) uint32 {
	masked := uint32(in) & mask
	return masked >> shift
}

func (in Instruction) Opcode() uint8   { return uint8(in.field(opcodeMask, 0)) }
func (in Instruction) Rd() uint8       { return uint8(in.field(rdMask, rdShift)) }
func (in Instruction) Funct3() uint8   { return uint8(in.field(funct3Mask, funct3Shift)) }
func (in Instruction) Rs1() uint8      { return uint8(in.field(rs1Mask, rs1Shift)) }
func (in Instruction) Rs2() uint8      { return uint8(in.field(rs2Mask, rs2Shift)) }
func (in Instruction) Funct7() uint8   { return uint8(in.field(funct7Mask, funct7Shift)) }
func (in Instruction) Funct12() uint16 { return uint16(in.field(funct12Mask, funct12Shift)) }

// Shamt is the shift amount of an immediate shift, the low 5 bits of imm[11:0].
func (in Instruction) Shamt() uint32 { return in.field(rs2Mask, rs2Shift) & 0x1F }

// ImmI is imm[11:0] from bits [31:20], sign-extended.
func (in Instruction) ImmI() uint32 {
	return serializer.SignExtend(in.field(funct12Mask, funct12Shift), 12)
}

// ImmS is imm[11:5] from bits [31:25] and imm[4:0] from bits [11:7],
// sign-extended.
func (in Instruction) ImmS() uint32 {
	hi := in.field(funct7Mask, funct7Shift)
	lo := in.field(rdMask, rdShift)
	return serializer.SignExtend(hi<<5|lo, 12)
}

// ImmB reassembles imm[12|10:5|4:1|11] into a 13-bit value with imm[0] = 0
// and sign-extends it.
func (in Instruction) ImmB() uint32 {
	b12 := in.field(0x8000_0000, 31)
	b11 := in.field(0x0000_0080, 7)
	b10to5 := in.field(0x7E00_0000, 25)
	b4to1 := in.field(0x0000_0F00, 8)
	imm := b12<<12 | b11<<11 | b10to5<<5 | b4to1<<1
	return serializer.SignExtend(imm, 13)
}

// ImmU is bits [31:12] in place with the low 12 bits zero.
func (in Instruction) ImmU() uint32 {
	return uint32(in) & upperMask
}

// ImmJ reassembles imm[20|10:1|11|19:12] into a 21-bit value with imm[0] = 0
// and sign-extends it.
func (in Instruction) ImmJ() uint32 {
	b20 := in.field(0x8000_0000, 31)
	b19to12 := in.field(0x000F_F000, 12)
	b11 := in.field(0x0010_0000, 20)
	b10to1 := in.field(0x7FE0_0000, 21)
	imm := b20<<20 | b19to12<<12 | b11<<11 | b10to1<<1
	return serializer.SignExtend(imm, 21)
}

// Decoded is the decoded view of one instruction word.
type Decoded struct {
	Word Instruction
	Op   Operation
	Rd   uint8
	Rs1  uint8
	Rs2  uint8
	// Imm is the sign-extended immediate for the shape of Op, or the shift
	// amount for immediate shifts.
	Imm uint32
}

// Decode maps a word to its operation and operands. Words that name no
// operation, and FENCE or SYSTEM encodings with non-zero reserved fields, fail
// with ErrDecode and come back as OpInvalid. A zero word decodes to OpHalt.
func Decode(word uint32) (Decoded, error) {
	in := Instruction(word)
	d := Decoded{Word: in, Op: lookup(in)}

	switch d.Op.Shape() {
	case ShapeR:
		d.Rd, d.Rs1, d.Rs2 = in.Rd(), in.Rs1(), in.Rs2()
	case ShapeI:
		d.Rd, d.Rs1 = in.Rd(), in.Rs1()
		d.Imm = in.ImmI()
		if d.Op == OpSLLI || d.Op == OpSRLI || d.Op == OpSRAI {
			d.Imm = in.Shamt()
		}
	case ShapeS:
		d.Rs1, d.Rs2 = in.Rs1(), in.Rs2()
		d.Imm = in.ImmS()
	case ShapeB:
		d.Rs1, d.Rs2 = in.Rs1(), in.Rs2()
		d.Imm = in.ImmB()
	case ShapeU:
		d.Rd = in.Rd()
		d.Imm = in.ImmU()
	case ShapeJ:
		d.Rd = in.Rd()
		d.Imm = in.ImmJ()
	}

	switch d.Op {
	case OpInvalid:
		return d, decodeFault(word, "no operation for opcode=%#02x funct3=%#x funct7=%#02x", in.Opcode(), in.Funct3(), in.Funct7())
	case OpFENCE, OpFENCEI:
		if d.Rd != 0 || d.Rs1 != 0 {
			err := decodeFault(word, "%s with non-zero rd or rs1", d.Op)
			d.Op = OpInvalid
			return d, err
		}
		if d.Op == OpFENCEI && d.Imm != 0 {
			d.Op = OpInvalid
			return d, decodeFault(word, "fence.i with non-zero immediate")
		}
	case OpSCALL, OpSBREAK, OpRDCYCLE, OpRDCYCLEH, OpRDTIME, OpRDTIMEH, OpRDINSTRET, OpRDINSTRETH:
		if d.Rd != 0 || d.Rs1 != 0 {
			d.Op = OpInvalid
			return d, decodeFault(word, "system instruction with non-zero rd or rs1")
		}
	}
	return d, nil
}

func (d Decoded) String() string {
	rd, rs1, rs2 := RegisterName(int(d.Rd)), RegisterName(int(d.Rs1)), RegisterName(int(d.Rs2))
	imm := int32(d.Imm)
	switch d.Op {
	case OpInvalid:
		return fmt.Sprintf("invalid %#08x", uint32(d.Word))
	case OpHalt, OpFENCE, OpFENCEI, OpSCALL, OpSBREAK:
		return d.Op.String()
	case OpRDCYCLE, OpRDCYCLEH, OpRDTIME, OpRDTIMEH, OpRDINSTRET, OpRDINSTRETH:
		return d.Op.String()
	case OpLUI, OpAUIPC:
		return fmt.Sprintf("%s %s, %#x", d.Op, rd, d.Imm>>12)
	case OpJAL:
		return fmt.Sprintf("%s %s, %d", d.Op, rd, imm)
	case OpJALR, OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return fmt.Sprintf("%s %s, %d(%s)", d.Op, rd, imm, rs1)
	case OpSB, OpSH, OpSW:
		return fmt.Sprintf("%s %s, %d(%s)", d.Op, rs2, imm, rs1)
	}
	switch d.Op.Shape() {
	case ShapeB:
		return fmt.Sprintf("%s %s, %s, %d", d.Op, rs1, rs2, imm)
	case ShapeI:
		return fmt.Sprintf("%s %s, %s, %d", d.Op, rd, rs1, imm)
	default:
		return fmt.Sprintf("%s %s, %s, %s", d.Op, rd, rs1, rs2)
	}
}
