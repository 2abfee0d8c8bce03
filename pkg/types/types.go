package types

import "fmt"

// Register is the raw 32-bit content of a general purpose register. The
// signed view is obtained with int32(r) where an operation calls for it.
type Register uint32

type ImageHash [32]byte

func (h ImageHash) String() string {
	return fmt.Sprintf("%x", h[:8])
}

// ExitStatus is the wire and storage form of how a run ended.
type ExitStatus uint8

const (
	ExitStatusRunning ExitStatus = iota
	ExitStatusHalted
	ExitStatusOutOfSteps
	ExitStatusFault
)

func (s ExitStatus) String() string {
	switch s {
	case ExitStatusRunning:
		return "running"
	case ExitStatusHalted:
		return "halted"
	case ExitStatusOutOfSteps:
		return "out-of-steps"
	case ExitStatusFault:
		return "fault"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}
