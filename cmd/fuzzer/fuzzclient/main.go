package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
	"github.com/alexanderKus/risc-v-emulator/pkg/net"
	"github.com/alexanderKus/risc-v-emulator/pkg/program"
	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/staterepository"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

const clientName = "rv32i-fuzzer"

// FuzzerClient drives a conformance server and checks every answer against
// a local machine running the same image.
type FuzzerClient struct {
	socketPath string
	peerInfo   fuzzinterface.PeerInfo

	// QUIC mode fields
	quicAddr   string
	serverName string
	keySeed    string
	quic       *net.Client

	// Socket mode fields
	conn *fuzzinterface.Client

	// In-process mode fields
	inProcess bool
	session   *fuzzinterface.Session
}

// ErrMismatch is returned when the server and the local machine disagree.
var ErrMismatch = errors.New("state mismatch")

func NewFuzzerClient(socketPath string, inProcess bool) *FuzzerClient {
	return &FuzzerClient{
		socketPath: socketPath,
		inProcess:  inProcess,
	}
}

// UseQUIC switches the client to the QUIC transport. serverName may be empty
// to accept any server identity.
func (fc *FuzzerClient) UseQUIC(addr, serverName, keySeed string) {
	fc.quicAddr = addr
	fc.serverName = serverName
	fc.keySeed = keySeed
}

// Connect establishes a connection to the server or initializes in-process mode
func (fc *FuzzerClient) Connect() error {
	switch {
	case fc.inProcess:
		log.Println("Running in in-process mode - no socket connection needed")
		if err := staterepository.InitializeGlobalRepository(""); err != nil {
			return err
		}
		server := fuzzinterface.NewServer(staterepository.GetGlobalRepository(), nil)
		fc.session = server.NewSession()
		fc.peerInfo = server.PeerInfo()
		return nil

	case fc.quicAddr != "":
		key, err := net.KeyFromSeed(fc.keySeed)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := net.Dial(ctx, fc.quicAddr, key, clientName, fc.serverName)
		if err != nil {
			return errors.Wrapf(err, "failed to connect to %s", fc.quicAddr)
		}
		fc.quic = client
		fc.peerInfo = client.Peer()
		log.Printf("Connected to %s over QUIC at %s", client.ServerName(), fc.quicAddr)
		return nil

	default:
		client, err := fuzzinterface.Dial(fc.socketPath, clientName)
		if err != nil {
			return errors.Wrapf(err, "failed to connect to socket %s", fc.socketPath)
		}
		fc.conn = client
		fc.peerInfo = client.Peer()
		log.Printf("Connected to server at %s", fc.socketPath)
		return nil
	}
}

// Disconnect closes the connection or cleans up in-process mode
func (fc *FuzzerClient) Disconnect() {
	switch {
	case fc.inProcess:
		staterepository.CloseGlobalRepository()
		log.Println("In-process mode cleaned up")
	case fc.quic != nil:
		fc.quic.Close()
		log.Println("Disconnected from server")
	case fc.conn != nil:
		fc.conn.Close()
		log.Println("Disconnected from server")
	}
}

func (fc *FuzzerClient) sendAndReceive(req fuzzinterface.RequestMessage) (fuzzinterface.ResponseMessage, error) {
	switch {
	case fc.inProcess:
		// Go through the wire codec so in-process runs cover it too.
		data, err := fuzzinterface.EncodeRequest(req)
		if err != nil {
			return fuzzinterface.ResponseMessage{}, err
		}
		resp, err := fc.session.HandleMessageData(data[4:])
		if err != nil {
			return fuzzinterface.ResponseMessage{}, err
		}
		data, err = fuzzinterface.EncodeMessage(resp)
		if err != nil {
			return fuzzinterface.ResponseMessage{}, err
		}
		return fuzzinterface.DecodeResponse(data[4:])
	case fc.quic != nil:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return fc.quic.Do(ctx, req)
	default:
		return fc.conn.Do(req)
	}
}

func (fc *FuzzerClient) request(req fuzzinterface.RequestMessage) (fuzzinterface.MachineState, error) {
	resp, err := fc.sendAndReceive(req)
	if err != nil {
		return fuzzinterface.MachineState{}, err
	}
	if resp.Error != nil {
		return fuzzinterface.MachineState{}, errors.Newf("server error: %s", string(*resp.Error))
	}
	if resp.State == nil {
		return fuzzinterface.MachineState{}, errors.New("expected State response")
	}
	return *resp.State, nil
}

func localState(m *rv32i.Machine, runErr error) fuzzinterface.MachineState {
	st := m.State()
	s := fuzzinterface.MachineState{
		PC:        st.PC,
		Registers: st.Registers,
		Status:    st.Status,
		Retired:   st.Retired,
		StateRoot: m.StateRoot(),
	}
	if runErr != nil {
		s.Fault = []byte(runErr.Error())
	}
	return s
}

func diffStates(want, got fuzzinterface.MachineState) string {
	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

// RunImage loads words on the server and on a local machine, then steps both
// chunk instructions at a time until the run ends or budget instructions
// have retired. With snapshot support the server is checkpointed half way and
// restored at the end, and the restored state must match the checkpoint.
func (fc *FuzzerClient) RunImage(words []uint32, chunk, budget uint64) (fuzzinterface.MachineState, error) {
	if chunk == 0 {
		chunk = 1
	}
	local := rv32i.NewMachine()
	if err := local.LoadProgram(words); err != nil {
		return fuzzinterface.MachineState{}, err
	}

	got, err := fc.request(fuzzinterface.RequestMessage{LoadProgram: &fuzzinterface.LoadProgram{Words: words}})
	if err != nil {
		return fuzzinterface.MachineState{}, errors.Wrap(err, "load program")
	}
	if diff := diffStates(localState(local, nil), got); diff != "" {
		return got, errors.Wrapf(ErrMismatch, "after load (-local +remote):\n%s", diff)
	}

	snapshots := fc.peerInfo.Features&fuzzinterface.FeatureSnapshots != 0
	var checkpoint *fuzzinterface.MachineState

	for local.Retired() < budget {
		n := min(chunk, budget-local.Retired())
		_, runErr := local.Run(n)
		want := localState(local, runErr)

		got, err = fc.request(fuzzinterface.RequestMessage{Step: &fuzzinterface.Step{Count: n}})
		if err != nil {
			return got, errors.Wrapf(err, "step at %d", want.Retired)
		}
		if diff := diffStates(want, got); diff != "" {
			return got, errors.Wrapf(ErrMismatch, "after %d instructions (-local +remote):\n%s", want.Retired, diff)
		}
		if want.Status != types.ExitStatusOutOfSteps {
			break
		}

		if snapshots && checkpoint == nil && local.Retired() >= budget/2 {
			cp, err := fc.request(fuzzinterface.RequestMessage{Checkpoint: &fuzzinterface.Checkpoint{}})
			if err != nil {
				return got, errors.Wrap(err, "checkpoint")
			}
			checkpoint = &cp
		}
	}

	final := got
	if err := fc.verifyPage(local, final.StateRoot, 0); err != nil {
		return final, err
	}
	if checkpoint != nil {
		restored, err := fc.request(fuzzinterface.RequestMessage{Restore: &fuzzinterface.Restore{Step: checkpoint.Retired}})
		if err != nil {
			return final, errors.Wrap(err, "restore")
		}
		if diff := diffStates(*checkpoint, restored); diff != "" {
			return final, errors.Wrapf(ErrMismatch, "restore of step %d (-checkpoint +restored):\n%s", checkpoint.Retired, diff)
		}
	}
	return final, nil
}

// verifyPage fetches a proof of page pageNum and checks it against root and
// against the local machine's copy. Empty pages have no proof.
func (fc *FuzzerClient) verifyPage(local *rv32i.Machine, root [32]byte, pageNum uint32) error {
	want := local.RAM.Page(pageNum)
	if ram.IsZeroPage(want) {
		return nil
	}
	resp, err := fc.sendAndReceive(fuzzinterface.RequestMessage{GetPageProof: &fuzzinterface.GetPageProof{Page: pageNum}})
	if err != nil {
		return errors.Wrapf(err, "page %d proof", pageNum)
	}
	if resp.Error != nil {
		return errors.Newf("server error: %s", string(*resp.Error))
	}
	if resp.PageProof == nil {
		return errors.New("expected PageProof response")
	}
	if !resp.PageProof.Verify(root) {
		return errors.Wrapf(ErrMismatch, "page %d proof does not match state root %x", pageNum, root)
	}
	if diff := cmp.Diff(want, resp.PageProof.Words); diff != "" {
		return errors.Wrapf(ErrMismatch, "page %d (-local +remote):\n%s", pageNum, diff)
	}
	return nil
}

// ReadMemory fetches count words from the server starting at addr.
func (fc *FuzzerClient) ReadMemory(addr, count uint32) ([]uint32, error) {
	resp, err := fc.sendAndReceive(fuzzinterface.RequestMessage{GetMemory: &fuzzinterface.GetMemory{Addr: addr, Count: count}})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.Newf("server error: %s", string(*resp.Error))
	}
	if resp.Memory == nil {
		return nil, errors.New("expected Memory response")
	}
	return resp.Memory.Words, nil
}

// loadImages returns the .bin images under dir keyed by file name.
func loadImages(dir string) (map[string][]uint32, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s", dir)
	}
	images := make(map[string][]uint32)
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		words, err := program.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, nil, err
		}
		images[e.Name()] = words
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return images, names, nil
}

func main() {
	socketPath := flag.String("socket", "/tmp/rv32i_target.sock", "Path for the Unix domain socket")
	quicAddr := flag.String("quic", "", "UDP address of a QUIC server; overrides -socket")
	serverName := flag.String("server-name", "", "Expected QUIC server name")
	keySeed := flag.String("key-seed", "", "Seed for the QUIC identity key")
	inProcess := flag.Bool("in-process", false, "Run in in-process mode (no socket communication)")
	vectorsPath := flag.String("vectors", "", "Directory of .bin images to run")
	seed := flag.Uint64("seed", 1, "Seed for generated programs")
	count := flag.Int("count", 100, "Number of generated programs when -vectors is not set")
	length := flag.Int("length", 64, "Instructions per generated program")
	chunk := flag.Uint64("chunk", 16, "Instructions per Step request")
	steps := flag.Uint64("steps", constants.DefaultStepBudget, "Instruction budget per image")
	flag.Parse()

	fc := NewFuzzerClient(*socketPath, *inProcess)
	if *quicAddr != "" {
		fc.UseQUIC(*quicAddr, *serverName, *keySeed)
	}
	if err := fc.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer fc.Disconnect()

	var failures int
	run := func(name string, words []uint32) {
		final, err := fc.RunImage(words, *chunk, *steps)
		if err != nil {
			failures++
			log.Printf("FAIL %s: %v", name, err)
			return
		}
		log.Printf("ok   %s: %s after %d instructions", name, final.Status, final.Retired)
	}

	if *vectorsPath != "" {
		images, names, err := loadImages(*vectorsPath)
		if err != nil {
			log.Fatalf("Failed to load vectors: %v", err)
		}
		for _, name := range names {
			run(name, images[name])
		}
	} else {
		r := rand.New(rand.NewPCG(*seed, 0))
		for i := 0; i < *count; i++ {
			run(fmt.Sprintf("generated-%d", i), generateProgram(r, *length))
		}
	}

	if failures > 0 {
		log.Printf("%d image(s) failed", failures)
		os.Exit(1)
	}
	log.Println("All images passed")
}
