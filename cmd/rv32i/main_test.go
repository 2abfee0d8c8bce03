package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/staterepository"
	"github.com/alexanderKus/risc-v-emulator/pkg/util"
)

func writeImage(t *testing.T, words ...uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, util.WordsToBytes(words), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	addi := rv32i.EncodeI(rv32i.OpcodeOpImm, 10, 0b000, 0, 42)
	tests := []struct {
		desc string
		args func(t *testing.T) []string
		want int
	}{
		{desc: "no image", args: func(*testing.T) []string { return nil }, want: exitUsage},
		{desc: "missing file", args: func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "nope.bin")} }, want: exitUsage},
		{desc: "bad flag", args: func(*testing.T) []string { return []string{"-bogus", "x"} }, want: exitUsage},
		{desc: "halt", args: func(t *testing.T) []string { return []string{writeImage(t, addi)} }, want: exitOK},
		{desc: "budget", args: func(t *testing.T) []string { return []string{"-steps", "1", writeImage(t, addi, addi)} }, want: exitOK},
		{desc: "fault", args: func(t *testing.T) []string { return []string{writeImage(t, addi, 0x0000007F)} }, want: exitFault},
		{desc: "not implemented", args: func(t *testing.T) []string { return []string{writeImage(t, 0x00000073)} }, want: exitFault},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args(t), &stdout, &stderr); got != tt.want {
				t.Errorf("exit = %d; want %d\nstderr:\n%s", got, tt.want, stderr.String())
			}
		})
	}
}

func TestRunDumpAndTrace(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.log")
	image := writeImage(t, rv32i.EncodeI(rv32i.OpcodeOpImm, 10, 0b000, 0, 42))

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-dump", "-trace", trace, image}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "0x00002a") {
		t.Errorf("dump does not show a0 = 42:\n%s", stdout.String())
	}
	data, err := os.ReadFile(trace)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "addi a0, zero, 42") {
		t.Errorf("trace does not show the instruction:\n%s", data)
	}
}

func TestRunResume(t *testing.T) {
	dataPath := t.TempDir()
	// x1 += 1 on every pass of a three instruction loop
	image := writeImage(t,
		rv32i.EncodeI(rv32i.OpcodeOpImm, 1, 0b000, 1, 1),
		rv32i.EncodeI(rv32i.OpcodeOpImm, 0, 0b000, 0, 0),
		rv32i.EncodeB(rv32i.OpcodeBranch, 0b000, 0, 0, -2),
	)

	var stdout, stderr bytes.Buffer
	for i := 0; i < 2; i++ {
		if code := run([]string{"-steps", "6", "-data-path", dataPath, "-resume", image}, &stdout, &stderr); code != exitOK {
			t.Fatalf("run %d: exit = %d\n%s", i, code, stderr.String())
		}
	}
	stdout.Reset()
	if code := run([]string{"-steps", "0", "-dump", "-data-path", dataPath, "-resume", image}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "at step 12") {
		t.Errorf("third run did not resume at step 12:\n%s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "0x000004") {
		t.Errorf("x1 should be 4 after 12 steps:\n%s", stdout.String())
	}
}

func TestRunKeepSnapshots(t *testing.T) {
	dataPath := t.TempDir()
	words := []uint32{
		rv32i.EncodeI(rv32i.OpcodeOpImm, 1, 0b000, 1, 1),
		rv32i.EncodeB(rv32i.OpcodeBranch, 0b000, 0, 0, -2),
	}
	image := writeImage(t, words...)

	var stdout, stderr bytes.Buffer
	for i := 0; i < 3; i++ {
		if code := run([]string{"-steps", "5", "-data-path", dataPath, "-resume", "-keep-snapshots", "2", image}, &stdout, &stderr); code != exitOK {
			t.Fatalf("run %d: exit = %d\n%s", i, code, stderr.String())
		}
	}
	if !strings.Contains(stderr.String(), "Pruned 1 old snapshots") {
		t.Errorf("third run did not prune:\n%s", stderr.String())
	}

	repo, err := staterepository.Open(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	steps, err := repo.ListSnapshots(rv32i.ImageHashOf(words))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{10, 15}, steps); diff != "" {
		t.Errorf("kept snapshots mismatch (-want +got):\n%s", diff)
	}
}
