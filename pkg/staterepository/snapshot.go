package staterepository

import (
	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

var ErrCorruptSnapshot = errors.New("snapshot does not match its state root")

// Snapshot is a machine at a given retired-instruction count. Only pages
// holding a non-zero word are kept.
type Snapshot struct {
	ImageHash types.ImageHash
	Step      uint64
	PC        uint32
	Registers [constants.NumRegisters]uint32
	Status    types.ExitStatus
	StateRoot [32]byte
	Pages     []Page
}

type Page struct {
	Number uint32
	Words  []uint32
}

// Capture copies the architectural state of m.
func Capture(m *rv32i.Machine) Snapshot {
	st := m.State()
	s := Snapshot{
		ImageHash: m.ImageHash(),
		Step:      st.Retired,
		PC:        st.PC,
		Registers: st.Registers,
		Status:    st.Status,
		StateRoot: m.StateRoot(),
	}
	for _, n := range m.RAM.Pages() {
		words := m.RAM.Page(n)
		if ram.IsZeroPage(words) {
			continue
		}
		s.Pages = append(s.Pages, Page{Number: n, Words: append([]uint32(nil), words...)})
	}
	return s
}

// Restore replaces the state of m with s. The snapshot is rebuilt on a
// scratch machine and must hash to its recorded root; on any error m is left
// untouched.
func Restore(m *rv32i.Machine, s Snapshot) error {
	scratch := rv32i.NewMachineWithRAM(ram.NewRAMWithCapacity(m.RAM.Capacity()))
	for _, p := range s.Pages {
		if err := scratch.RAM.RestorePage(p.Number, p.Words); err != nil {
			return errors.Wrapf(err, "restore page %d", p.Number)
		}
	}
	scratch.SetState(rv32i.State{
		PC:        s.PC,
		Registers: s.Registers,
		Retired:   s.Step,
		Status:    s.Status,
	})
	scratch.SetImageHash(s.ImageHash)
	if root := scratch.StateRoot(); root != s.StateRoot {
		return errors.Wrapf(ErrCorruptSnapshot, "image %s step %d", s.ImageHash, s.Step)
	}
	m.Adopt(scratch)
	return nil
}
