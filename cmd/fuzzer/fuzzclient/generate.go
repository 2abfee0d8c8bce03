package main

import (
	"math/rand/v2"

	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
)

// Generated programs keep their data above this word address so stores never
// overwrite code.
const dataBase = 1024

var (
	loadFunct3  = []uint8{0b000, 0b001, 0b010, 0b100, 0b101}
	storeFunct3 = []uint8{0b000, 0b001, 0b010}
	systemImms  = []int32{0xC00, 0xC01, 0xC02, 0xC80, 0xC81, 0xC82}
)

func reg(r *rand.Rand) uint8 {
	// Mostly low registers so values flow between instructions.
	if r.IntN(4) == 0 {
		return uint8(r.IntN(32))
	}
	return uint8(r.IntN(8))
}

func imm12(r *rand.Rand) int32 {
	return int32(r.IntN(4096)) - 2048
}

// generateProgram returns n random instructions followed by a halt word.
// Control flow only moves forward, so every program terminates.
func generateProgram(r *rand.Rand, n int) []uint32 {
	if n > dataBase-8 {
		n = dataBase - 8
	}
	words := make([]uint32, 0, n+1)
	for len(words) < n {
		words = append(words, generateInstruction(r, len(words), n))
	}
	return append(words, 0)
}

func generateInstruction(r *rand.Rand, pc, n int) uint32 {
	rd, rs1, rs2 := reg(r), reg(r), reg(r)
	switch k := r.IntN(100); {
	case k < 30:
		funct3 := uint8(r.IntN(8))
		funct7 := uint8(0)
		if funct3 == 0b000 || funct3 == 0b101 {
			if r.IntN(2) == 0 {
				funct7 = 0x20
			}
		}
		return rv32i.EncodeR(rv32i.OpcodeOp, rd, funct3, rs1, rs2, funct7)
	case k < 55:
		funct3 := uint8(r.IntN(8))
		imm := imm12(r)
		switch funct3 {
		case 0b001:
			imm = int32(r.IntN(32))
		case 0b101:
			imm = int32(r.IntN(32))
			if r.IntN(2) == 0 {
				imm |= 0x400
			}
		}
		return rv32i.EncodeI(rv32i.OpcodeOpImm, rd, funct3, rs1, imm)
	case k < 62:
		return rv32i.EncodeU(rv32i.OpcodeLUI, rd, r.Uint32())
	case k < 66:
		return rv32i.EncodeU(rv32i.OpcodeAUIPC, rd, r.Uint32())
	case k < 75:
		imm := int32(dataBase + r.IntN(256))
		return rv32i.EncodeI(rv32i.OpcodeLoad, rd, loadFunct3[r.IntN(len(loadFunct3))], 0, imm)
	case k < 84:
		imm := int32(dataBase + r.IntN(256))
		return rv32i.EncodeS(rv32i.OpcodeStore, storeFunct3[r.IntN(len(storeFunct3))], 0, rs2, imm)
	case k < 92:
		funct3 := []uint8{0b000, 0b001, 0b100, 0b101, 0b110, 0b111}[r.IntN(6)]
		return rv32i.EncodeB(rv32i.OpcodeBranch, funct3, rs1, rs2, forward(r, pc, n))
	case k < 95:
		return rv32i.EncodeJ(rv32i.OpcodeJAL, rd, forward(r, pc, n))
	case k < 96:
		// Lands past the program, on the halt word or zeroed memory.
		return rv32i.EncodeI(rv32i.OpcodeJALR, rd, 0b000, 0, int32(n+r.IntN(16)))
	case k < 98:
		return rv32i.EncodeI(rv32i.OpcodeMiscMem, 0, 0b000, 0, 0xFF)
	default:
		return rv32i.EncodeI(rv32i.OpcodeSystem, 0, 0b000, 0, systemImms[r.IntN(len(systemImms))])
	}
}

// forward returns an even offset from pc that stays within the program or
// lands on its halt word.
func forward(r *rand.Rand, pc, n int) int32 {
	room := (n - pc) / 2
	if room < 1 {
		return 2
	}
	return int32(2 * (1 + r.IntN(min(room, 8))))
}
