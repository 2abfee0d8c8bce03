package rv32i

import "fmt"

// Major opcodes, bits [6:0] of the instruction word.
const (
	OpcodeLoad    uint8 = 0x03
	OpcodeMiscMem uint8 = 0x0F
	OpcodeOpImm   uint8 = 0x13
	OpcodeAUIPC   uint8 = 0x17
	OpcodeStore   uint8 = 0x23
	OpcodeOp      uint8 = 0x33
	OpcodeLUI     uint8 = 0x37
	OpcodeBranch  uint8 = 0x63
	OpcodeJALR    uint8 = 0x67
	OpcodeJAL     uint8 = 0x6F
	OpcodeSystem  uint8 = 0x73
)

const (
	funct7Zero uint8 = 0x00
	funct7Alt  uint8 = 0x20
)

// SYSTEM operations are selected by the 12-bit immediate.
const (
	funct12SCALL      uint16 = 0x000
	funct12SBREAK     uint16 = 0x001
	funct12RDCYCLE    uint16 = 0xC00
	funct12RDTIME     uint16 = 0xC01
	funct12RDINSTRET  uint16 = 0xC02
	funct12RDCYCLEH   uint16 = 0xC80
	funct12RDTIMEH    uint16 = 0xC81
	funct12RDINSTRETH uint16 = 0xC82
)

// Operation identifies one architectural operation.
type Operation uint8

const (
	OpInvalid Operation = iota
	OpHalt              // all-zero word

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	OpSB
	OpSH
	OpSW

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpFENCE
	OpFENCEI

	OpSCALL
	OpSBREAK
	OpRDCYCLE
	OpRDCYCLEH
	OpRDTIME
	OpRDTIMEH
	OpRDINSTRET
	OpRDINSTRETH

	numOperations
)

var mnemonics = [numOperations]string{
	OpInvalid: "invalid", OpHalt: "halt",
	OpLUI: "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpFENCE: "fence", OpFENCEI: "fence.i",
	OpSCALL: "scall", OpSBREAK: "sbreak",
	OpRDCYCLE: "rdcycle", OpRDCYCLEH: "rdcycleh", OpRDTIME: "rdtime", OpRDTIMEH: "rdtimeh",
	OpRDINSTRET: "rdinstret", OpRDINSTRETH: "rdinstreth",
}

func (op Operation) String() string {
	if op < numOperations {
		return mnemonics[op]
	}
	return fmt.Sprintf("Operation(%d)", uint8(op))
}

// Class groups operations that share a handler and an encoding shape.
type Class uint8

const (
	ClassInvalid Class = iota
	ClassHalt
	ClassUpper
	ClassJump
	ClassBranch
	ClassLoad
	ClassStore
	ClassALUImm
	ClassALUReg
	ClassFence
	ClassSystem

	numClasses
)

var classNames = [numClasses]string{
	ClassInvalid: "invalid", ClassHalt: "halt",
	ClassUpper: "upper", ClassJump: "jump", ClassBranch: "branch",
	ClassLoad: "load", ClassStore: "store",
	ClassALUImm: "alu-imm", ClassALUReg: "alu-reg",
	ClassFence: "fence", ClassSystem: "system",
}

// String is the label used in metrics.
func (c Class) String() string {
	if c < numClasses {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

func (op Operation) Class() Class {
	switch {
	case op == OpLUI || op == OpAUIPC:
		return ClassUpper
	case op == OpJAL || op == OpJALR:
		return ClassJump
	case op >= OpBEQ && op <= OpBGEU:
		return ClassBranch
	case op >= OpLB && op <= OpLHU:
		return ClassLoad
	case op >= OpSB && op <= OpSW:
		return ClassStore
	case op >= OpADDI && op <= OpSRAI:
		return ClassALUImm
	case op >= OpADD && op <= OpAND:
		return ClassALUReg
	case op == OpFENCE || op == OpFENCEI:
		return ClassFence
	case op >= OpSCALL && op <= OpRDINSTRETH:
		return ClassSystem
	case op == OpHalt:
		return ClassHalt
	default:
		return ClassInvalid
	}
}

// Shape is the encoding format of an instruction.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeR
	ShapeI
	ShapeS
	ShapeB
	ShapeU
	ShapeJ
)

func (op Operation) Shape() Shape {
	switch op.Class() {
	case ClassUpper:
		return ShapeU
	case ClassBranch:
		return ShapeB
	case ClassStore:
		return ShapeS
	case ClassALUReg:
		return ShapeR
	case ClassLoad, ClassALUImm, ClassFence, ClassSystem:
		return ShapeI
	case ClassJump:
		if op == OpJAL {
			return ShapeJ
		}
		return ShapeI
	default:
		return ShapeNone
	}
}

// dispatchKey selects an Operation. Fields that do not take part in the
// selection for a given opcode are left zero.
type dispatchKey struct {
	opcode  uint8
	funct3  uint8
	funct7  uint8
	funct12 uint16
}

var operationTable = map[dispatchKey]Operation{
	{opcode: OpcodeLUI}:   OpLUI,
	{opcode: OpcodeAUIPC}: OpAUIPC,
	{opcode: OpcodeJAL}:   OpJAL,
	{opcode: OpcodeJALR}:  OpJALR,

	{opcode: OpcodeBranch, funct3: 0b000}: OpBEQ,
	{opcode: OpcodeBranch, funct3: 0b001}: OpBNE,
	{opcode: OpcodeBranch, funct3: 0b100}: OpBLT,
	{opcode: OpcodeBranch, funct3: 0b101}: OpBGE,
	{opcode: OpcodeBranch, funct3: 0b110}: OpBLTU,
	{opcode: OpcodeBranch, funct3: 0b111}: OpBGEU,

	{opcode: OpcodeLoad, funct3: 0b000}: OpLB,
	{opcode: OpcodeLoad, funct3: 0b001}: OpLH,
	{opcode: OpcodeLoad, funct3: 0b010}: OpLW,
	{opcode: OpcodeLoad, funct3: 0b100}: OpLBU,
	{opcode: OpcodeLoad, funct3: 0b101}: OpLHU,

	{opcode: OpcodeStore, funct3: 0b000}: OpSB,
	{opcode: OpcodeStore, funct3: 0b001}: OpSH,
	{opcode: OpcodeStore, funct3: 0b010}: OpSW,

	{opcode: OpcodeOpImm, funct3: 0b000}:                     OpADDI,
	{opcode: OpcodeOpImm, funct3: 0b010}:                     OpSLTI,
	{opcode: OpcodeOpImm, funct3: 0b011}:                     OpSLTIU,
	{opcode: OpcodeOpImm, funct3: 0b100}:                     OpXORI,
	{opcode: OpcodeOpImm, funct3: 0b110}:                     OpORI,
	{opcode: OpcodeOpImm, funct3: 0b111}:                     OpANDI,
	{opcode: OpcodeOpImm, funct3: 0b001, funct7: funct7Zero}: OpSLLI,
	{opcode: OpcodeOpImm, funct3: 0b101, funct7: funct7Zero}: OpSRLI,
	{opcode: OpcodeOpImm, funct3: 0b101, funct7: funct7Alt}:  OpSRAI,

	{opcode: OpcodeOp, funct3: 0b000, funct7: funct7Zero}: OpADD,
	{opcode: OpcodeOp, funct3: 0b000, funct7: funct7Alt}:  OpSUB,
	{opcode: OpcodeOp, funct3: 0b001, funct7: funct7Zero}: OpSLL,
	{opcode: OpcodeOp, funct3: 0b010, funct7: funct7Zero}: OpSLT,
	{opcode: OpcodeOp, funct3: 0b011, funct7: funct7Zero}: OpSLTU,
	{opcode: OpcodeOp, funct3: 0b100, funct7: funct7Zero}: OpXOR,
	{opcode: OpcodeOp, funct3: 0b101, funct7: funct7Zero}: OpSRL,
	{opcode: OpcodeOp, funct3: 0b101, funct7: funct7Alt}:  OpSRA,
	{opcode: OpcodeOp, funct3: 0b110, funct7: funct7Zero}: OpOR,
	{opcode: OpcodeOp, funct3: 0b111, funct7: funct7Zero}: OpAND,

	{opcode: OpcodeMiscMem, funct3: 0b000}: OpFENCE,
	{opcode: OpcodeMiscMem, funct3: 0b001}: OpFENCEI,

	{opcode: OpcodeSystem, funct12: funct12SCALL}:      OpSCALL,
	{opcode: OpcodeSystem, funct12: funct12SBREAK}:     OpSBREAK,
	{opcode: OpcodeSystem, funct12: funct12RDCYCLE}:    OpRDCYCLE,
	{opcode: OpcodeSystem, funct12: funct12RDCYCLEH}:   OpRDCYCLEH,
	{opcode: OpcodeSystem, funct12: funct12RDTIME}:     OpRDTIME,
	{opcode: OpcodeSystem, funct12: funct12RDTIMEH}:    OpRDTIMEH,
	{opcode: OpcodeSystem, funct12: funct12RDINSTRET}:  OpRDINSTRET,
	{opcode: OpcodeSystem, funct12: funct12RDINSTRETH}: OpRDINSTRETH,
}

func keyFor(in Instruction) dispatchKey {
	key := dispatchKey{opcode: in.Opcode()}
	switch key.opcode {
	case OpcodeLUI, OpcodeAUIPC, OpcodeJAL:
	case OpcodeOp:
		key.funct3 = in.Funct3()
		key.funct7 = in.Funct7()
	case OpcodeOpImm:
		key.funct3 = in.Funct3()
		if key.funct3 == 0b001 || key.funct3 == 0b101 {
			key.funct7 = in.Funct7()
		}
	case OpcodeSystem:
		key.funct3 = in.Funct3()
		key.funct12 = in.Funct12()
	default:
		key.funct3 = in.Funct3()
	}
	return key
}

// lookup maps a word to its Operation. Anything not in the table is
// OpInvalid.
func lookup(in Instruction) Operation {
	if in == 0 {
		return OpHalt
	}
	if op, ok := operationTable[keyFor(in)]; ok {
		return op
	}
	return OpInvalid
}
