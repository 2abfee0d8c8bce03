package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
	"github.com/alexanderKus/risc-v-emulator/pkg/util"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildRequests(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, dir, "prog.bin", util.WordsToBytes([]uint32{0x00100093}))

	framed, err := fuzzinterface.EncodeRequest(fuzzinterface.RequestMessage{GetMemory: &fuzzinterface.GetMemory{Addr: 0, Count: 2}})
	if err != nil {
		t.Fatal(err)
	}
	peer, err := fuzzinterface.EncodeRequest(fuzzinterface.RequestMessage{PeerInfo: &fuzzinterface.PeerInfo{Name: []byte("x")}})
	if err != nil {
		t.Fatal(err)
	}
	files := []string{
		writeFile(t, dir, "00_peer.bin", peer),
		writeFile(t, dir, "01_memory.bin", framed),
		writeFile(t, dir, "02_state.bin", []byte{byte(fuzzinterface.RequestMessageTypeGetState)}),
	}

	got, err := buildRequests(image, files, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []namedRequest{
		{name: "load prog.bin", msg: fuzzinterface.RequestMessage{LoadProgram: &fuzzinterface.LoadProgram{Words: []uint32{0x00100093}}}},
		{name: "01_memory.bin", msg: fuzzinterface.RequestMessage{GetMemory: &fuzzinterface.GetMemory{Addr: 0, Count: 2}}},
		{name: "02_state.bin", msg: fuzzinterface.RequestMessage{GetState: &fuzzinterface.GetState{}}},
		{name: "step 5", msg: fuzzinterface.RequestMessage{Step: &fuzzinterface.Step{Count: 5}}},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(namedRequest{})); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRequestsRejectsGarbage(t *testing.T) {
	bad := writeFile(t, t.TempDir(), "bad.bin", []byte{0x42})
	if _, err := buildRequests("", []string{bad}, 0); err == nil {
		t.Error("expected an error for an unknown message type")
	}
}

func TestDescribe(t *testing.T) {
	msg := []byte("boom")
	tests := []struct {
		resp fuzzinterface.ResponseMessage
		want string
	}{
		{fuzzinterface.ResponseMessage{State: &fuzzinterface.MachineState{PC: 3, Status: types.ExitStatusHalted, Retired: 3}}, "State: pc=3 status=halted retired=3"},
		{fuzzinterface.ResponseMessage{State: &fuzzinterface.MachineState{Status: types.ExitStatusFault, Fault: []byte("bad")}}, `fault="bad"`},
		{fuzzinterface.ResponseMessage{Memory: &fuzzinterface.Memory{Words: []uint32{1}}}, "Memory: [0x000001]"},
		{fuzzinterface.ResponseMessage{PageProof: &fuzzinterface.PageProof{Page: 1, Index: 2, Count: 3, Trace: make([][32]byte, 2)}}, "PageProof: page=1 leaf=2/3 trace=2"},
		{fuzzinterface.ResponseMessage{Error: &msg}, "Error: boom"},
		{fuzzinterface.ResponseMessage{}, "empty response"},
	}
	for _, tt := range tests {
		if got := describe(tt.resp); !strings.Contains(got, tt.want) {
			t.Errorf("describe() = %q; want it to contain %q", got, tt.want)
		}
	}
}
