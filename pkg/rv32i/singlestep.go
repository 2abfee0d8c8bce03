package rv32i

import (
	"log"
	"os"

	"github.com/cockroachdb/errors"
)

// OpenTraceLogger truncates filename and returns a logger writing to it.
// The caller closes the file when the run is over.
func OpenTraceLogger(filename string) (*log.Logger, *os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, nil, err
	}
	return log.New(file, "", log.LstdFlags), file, nil
}

// SetTraceLogger sends a line per executed instruction of this machine to
// l; nil turns tracing off.
func (m *Machine) SetTraceLogger(l *log.Logger) {
	m.trace = l
}

// SingleStep fetches, decodes and executes the instruction at pc. A fault
// leaves pc at the faulting instruction and is returned both in the exit
// reason and as the error.
func (m *Machine) SingleStep() (ExitReason, error) {
	pc := m.Registers.PC()

	word, err := m.RAM.Inspect(pc)
	if err != nil {
		return m.fault(pc, Decoded{}, errors.Wrap(err, "fetch"))
	}

	d, err := m.fetchDecoded(pc, word)
	if err != nil {
		return m.fault(pc, d, err)
	}

	if m.trace != nil {
		m.trace.Printf("pc=%d word=%#08x op=%s rd=%d rs1=%d rs2=%d imm=%d %s",
			pc, word, d.Op, d.Rd, d.Rs1, d.Rs2, int32(d.Imm), d)
	}

	if d.Op == OpHalt {
		return ExitReasonHalt, nil
	}

	handler := dispatchTable[d.Op]
	if handler == nil {
		return m.fault(pc, d, errors.Wrapf(ErrDecode, "no handler for %s", d.Op))
	}
	if err := handler(m, &d); err != nil {
		return m.fault(pc, d, err)
	}

	m.retired++
	if m.observer != nil {
		m.observer.InstructionRetired(d.Op)
	}
	return ExitReasonGo, nil
}

func (m *Machine) fault(pc uint32, d Decoded, err error) (ExitReason, error) {
	f := newFault(pc, d, err)
	if m.trace != nil {
		m.trace.Printf("pc=%d fault: %v", pc, f)
	}
	return NewFaultExitReason(f), f
}

// fetchDecoded returns the decoded instruction at pc, reusing the program
// cache while memory still holds the word that was decoded at load time.
func (m *Machine) fetchDecoded(pc, word uint32) (Decoded, error) {
	if p := m.program; p != nil && uint64(pc) < uint64(len(p.decoded)) {
		if d := p.decoded[pc]; d.Word == Instruction(word) && d.Op != OpInvalid {
			return d, nil
		}
	}
	return Decode(word)
}
