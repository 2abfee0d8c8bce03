package rv32i

import (
	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

type ExitReasonType int

const (
	ExitGo         ExitReasonType = iota // keep stepping
	ExitHalt                             // zero word fetched
	ExitFault                            // fatal fault (with associated Fault)
	ExitOutOfSteps                       // step budget exhausted
)

func (t ExitReasonType) String() string {
	switch t {
	case ExitGo:
		return "go"
	case ExitHalt:
		return "halt"
	case ExitFault:
		return "fault"
	case ExitOutOfSteps:
		return "out-of-steps"
	default:
		return "unknown"
	}
}

type ExitReason struct {
	Type  ExitReasonType
	Fault *Fault
}

// Pre-allocated ExitReason constants
var (
	ExitReasonGo         = ExitReason{Type: ExitGo}
	ExitReasonHalt       = ExitReason{Type: ExitHalt}
	ExitReasonOutOfSteps = ExitReason{Type: ExitOutOfSteps}
)

func NewFaultExitReason(f *Fault) ExitReason {
	return ExitReason{Type: ExitFault, Fault: f}
}

func (er ExitReason) String() string {
	if er.Fault != nil {
		return er.Type.String() + ": " + er.Fault.Error()
	}
	return er.Type.String()
}

// Status maps an exit reason to its stored and wire form.
func (er ExitReason) Status() types.ExitStatus {
	switch er.Type {
	case ExitHalt:
		return types.ExitStatusHalted
	case ExitFault:
		return types.ExitStatusFault
	case ExitOutOfSteps:
		return types.ExitStatusOutOfSteps
	default:
		return types.ExitStatusRunning
	}
}

// State is the architectural state of a machine apart from memory.
type State struct {
	PC        uint32
	Registers [constants.NumRegisters]uint32
	Retired   uint64
	Status    types.ExitStatus
}

// Observer is told about every retired instruction and every finished run.
type Observer interface {
	InstructionRetired(op Operation)
	RunFinished(reason ExitReason)
}
