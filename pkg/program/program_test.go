package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		desc string
		data []byte
		want []uint32
	}{
		{desc: "empty", data: nil, want: []uint32{}},
		{desc: "addi", data: []byte{0x93, 0x00, 0x10, 0x00}, want: []uint32{0x00100093}},
		{desc: "partial word", data: []byte{0x93, 0x00, 0x10, 0x00, 0x13}, want: []uint32{0x00100093, 0x13}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := Decode(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeTooLarge(t *testing.T) {
	_, err := Decode(make([]byte, constants.MaxImageBytes+1))
	if !errors.Is(err, ErrImageTooLarge) || !errors.Is(err, rv32i.ErrUsage) {
		t.Fatalf("error = %v; want a usage error", err)
	}
	words, err := Decode(make([]byte, constants.MaxImageBytes))
	if err != nil || len(words) != constants.MemoryCapacityWords {
		t.Fatalf("full-size image: %d words, %v", len(words), err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, rv32i.ErrUsage) {
		t.Fatalf("error = %v; want a usage error", err)
	}
}

func TestLoadAndRun(t *testing.T) {
	// addi x1, x0, 1; addi x1, x1, 1; halt
	path := filepath.Join(t.TempDir(), "image.bin")
	image := []byte{0x93, 0x00, 0x10, 0x00, 0x93, 0x80, 0x10, 0x00}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	m := rv32i.NewMachine()
	if err := Load(m, path); err != nil {
		t.Fatal(err)
	}
	exitReason, err := m.Run(10)
	if err != nil || exitReason.Type != rv32i.ExitHalt {
		t.Fatalf("Run() = %v, %v", exitReason, err)
	}
	if got, _ := m.Registers.Get(1); got != 2 {
		t.Errorf("x1 = %d; want 2", got)
	}
}
