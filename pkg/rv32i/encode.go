package rv32i

// Encoders build instruction words from fields. Immediates are taken as
// signed values and truncated to their field width.

func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint8) uint32 {
	return uint32(funct7&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

func EncodeI(opcode, rd, funct3, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

func EncodeS(opcode, funct3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | (u&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeB takes the branch offset including its always-zero bit 0.
func EncodeB(opcode, funct3, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&0x1)<<31 | ((u>>5)&0x3F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | ((u>>1)&0xF)<<8 | ((u>>11)&0x1)<<7 | uint32(opcode&0x7F)
}

// EncodeU takes the value of bits [31:12] in place; the low 12 bits are dropped.
func EncodeU(opcode, rd uint8, imm uint32) uint32 {
	return imm&upperMask | uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}

// EncodeJ takes the jump offset including its always-zero bit 0.
func EncodeJ(opcode, rd uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&0x1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&0x1)<<20 | ((u>>12)&0xFF)<<12 |
		uint32(rd&0x1F)<<7 | uint32(opcode&0x7F)
}
