package rv32i

import (
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/alexanderKus/risc-v-emulator/pkg/merklizer"
	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
	"github.com/alexanderKus/risc-v-emulator/pkg/util"
)

type cachedProgram struct {
	decoded []Decoded
}

const maxCachedPrograms = 64

var (
	programCache   = make(map[types.ImageHash]*cachedProgram)
	programCacheMu sync.RWMutex
)

// Machine is one hart with its own registers and memory. It is not safe for
// concurrent use.
type Machine struct {
	Registers *Registers
	RAM       *ram.RAM

	retired   uint64
	status    types.ExitStatus
	imageHash types.ImageHash
	program   *cachedProgram
	observer  Observer
	trace     *log.Logger
	tree      *merklizer.MemoryTree
}

// NewMachine returns a machine with zeroed registers and a memory of the
// default capacity.
func NewMachine() *Machine {
	return NewMachineWithRAM(ram.NewRAM())
}

func NewMachineWithRAM(r *ram.RAM) *Machine {
	return &Machine{
		Registers: &Registers{},
		RAM:       r,
		tree:      merklizer.NewMemoryTree(),
	}
}

func (m *Machine) SetObserver(o Observer) {
	m.observer = o
}

// ImageHashOf is the blake2b-256 hash of words in their little-endian file
// form.
func ImageHashOf(words []uint32) types.ImageHash {
	return types.ImageHash(blake2b.Sum256(util.WordsToBytes(words)))
}

// LoadProgram copies words into memory from address 0. An image larger than
// memory is a usage error.
func (m *Machine) LoadProgram(words []uint32) error {
	if uint64(len(words)) > uint64(m.RAM.Capacity()) {
		return errors.Mark(
			errors.Newf("image of %d words exceeds memory of %d words", len(words), m.RAM.Capacity()),
			ErrUsage)
	}
	if err := m.RAM.Load(words); err != nil {
		return errors.Mark(err, ErrUsage)
	}
	m.imageHash = ImageHashOf(words)
	m.program = programFor(m.imageHash, words)
	return nil
}

func programFor(hash types.ImageHash, words []uint32) *cachedProgram {
	programCacheMu.RLock()
	cached, ok := programCache[hash]
	programCacheMu.RUnlock()
	if ok {
		return cached
	}

	p := &cachedProgram{decoded: make([]Decoded, len(words))}
	for i, w := range words {
		// Data words decode to OpInvalid and are decoded again if ever fetched.
		p.decoded[i], _ = Decode(w)
	}

	programCacheMu.Lock()
	if len(programCache) >= maxCachedPrograms {
		for k := range programCache {
			delete(programCache, k)
			break
		}
	}
	programCache[hash] = p
	programCacheMu.Unlock()
	return p
}

func (m *Machine) ImageHash() types.ImageHash {
	return m.imageHash
}

// Retired is the number of instructions executed to completion.
func (m *Machine) Retired() uint64 {
	return m.retired
}

// Status is how the last run ended.
func (m *Machine) Status() types.ExitStatus {
	return m.status
}

// Run executes at most steps instructions.
func (m *Machine) Run(steps uint64) (ExitReason, error) {
	for i := uint64(0); i < steps; i++ {
		exitReason, err := m.SingleStep()
		if exitReason.Type == ExitGo {
			continue
		}
		m.finish(exitReason)
		return exitReason, err
	}
	m.finish(ExitReasonOutOfSteps)
	return ExitReasonOutOfSteps, nil
}

func (m *Machine) finish(exitReason ExitReason) {
	m.status = exitReason.Status()
	if m.observer != nil {
		m.observer.RunFinished(exitReason)
	}
}

func (m *Machine) State() State {
	return State{
		PC:        m.Registers.PC(),
		Registers: m.Registers.Values(),
		Retired:   m.retired,
		Status:    m.status,
	}
}

// SetState restores everything but memory.
func (m *Machine) SetState(s State) {
	m.Registers.SetPC(s.PC)
	m.Registers.SetValues(s.Registers)
	m.retired = s.Retired
	m.status = s.Status
}

// SetImageHash records which image a machine restored from storage runs and
// picks up that image's decoded program if it is still cached.
func (m *Machine) SetImageHash(h types.ImageHash) {
	m.imageHash = h
	programCacheMu.RLock()
	m.program = programCache[h]
	programCacheMu.RUnlock()
}

// StateRoot commits to pc, registers and memory.
func (m *Machine) StateRoot() [32]byte {
	m.tree.Update(m.RAM)
	return m.tree.StateRoot(m.Registers.PC(), m.Registers.Values())
}

// PageProof returns the Merkle trace tying page pageNum to StateRoot. ok is
// false for a page that holds no non-zero word.
func (m *Machine) PageProof(pageNum uint32) (index, count int, trace [][32]byte, ok bool) {
	m.tree.Update(m.RAM)
	return m.tree.PageProof(m.Registers.PC(), m.Registers.Values(), pageNum)
}

// Adopt replaces the architectural state of m with src's, including its
// memory and image. m keeps its observer and trace logger; src must not be
// used afterwards.
func (m *Machine) Adopt(src *Machine) {
	*m.Registers = *src.Registers
	m.RAM = src.RAM
	m.tree = src.tree
	m.retired = src.retired
	m.status = src.status
	m.imageHash = src.imageHash
	m.program = src.program
}

// Reset zeroes registers, memory and counters. The loaded image is forgotten.
func (m *Machine) Reset() {
	*m.Registers = Registers{}
	m.RAM.Reset()
	m.retired = 0
	m.status = types.ExitStatusRunning
	m.imageHash = types.ImageHash{}
	m.program = nil
}
