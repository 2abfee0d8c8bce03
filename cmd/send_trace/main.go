// Command send_trace replays recorded request messages against a running
// conformance server and prints each response.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
	"github.com/alexanderKus/risc-v-emulator/pkg/program"
)

func main() {
	socketPath := flag.String("socket", "/tmp/rv32i_target.sock", "Path for the Unix domain socket")
	image := flag.String("image", "", "Load this image before replaying the message files")
	steps := flag.Uint64("steps", 0, "Step this many instructions after the message files")
	delay := flag.Duration("delay", 100*time.Millisecond, "Pause between requests")
	flag.Parse()

	requests, err := buildRequests(*image, flag.Args(), *steps)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}

	client, err := fuzzinterface.Dial(*socketPath, "send_trace")
	if err != nil {
		fmt.Printf("Error connecting to socket: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	fmt.Printf("Connected to %s (%s)\n", *socketPath, client.Peer().Name)

	for i, req := range requests {
		fmt.Printf("\n[%d/%d] Sending %s\n", i+1, len(requests), req.name)
		resp, err := client.Do(req.msg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(describe(resp))
		time.Sleep(*delay)
	}

	fmt.Println("\nAll requests sent successfully!")
}

type namedRequest struct {
	name string
	msg  fuzzinterface.RequestMessage
}

func buildRequests(image string, files []string, steps uint64) ([]namedRequest, error) {
	var requests []namedRequest
	if image != "" {
		words, err := program.ReadFile(image)
		if err != nil {
			return nil, err
		}
		requests = append(requests, namedRequest{
			name: "load " + filepath.Base(image),
			msg:  fuzzinterface.RequestMessage{LoadProgram: &fuzzinterface.LoadProgram{Words: words}},
		})
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", file)
		}
		req, err := fuzzinterface.DecodeRequest(unframe(data))
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", file)
		}
		if req.PeerInfo != nil {
			// Dial already performed the handshake.
			continue
		}
		requests = append(requests, namedRequest{name: filepath.Base(file), msg: req})
	}
	if steps > 0 {
		requests = append(requests, namedRequest{
			name: fmt.Sprintf("step %d", steps),
			msg:  fuzzinterface.RequestMessage{Step: &fuzzinterface.Step{Count: steps}},
		})
	}
	return requests, nil
}

// unframe drops the length prefix of a recorded message if it has one.
func unframe(data []byte) []byte {
	if len(data) > 4 && int(binary.LittleEndian.Uint32(data)) == len(data)-4 {
		return data[4:]
	}
	return data
}

func describe(resp fuzzinterface.ResponseMessage) string {
	switch {
	case resp.State != nil:
		s := resp.State
		out := fmt.Sprintf("State: pc=%d status=%s retired=%d root=%x", s.PC, s.Status, s.Retired, s.StateRoot)
		if len(s.Fault) > 0 {
			out += fmt.Sprintf(" fault=%q", s.Fault)
		}
		return out
	case resp.Memory != nil:
		return fmt.Sprintf("Memory: %#08x", resp.Memory.Words)
	case resp.PageProof != nil:
		p := resp.PageProof
		return fmt.Sprintf("PageProof: page=%d leaf=%d/%d trace=%d", p.Page, p.Index, p.Count, len(p.Trace))
	case resp.PeerInfo != nil:
		return fmt.Sprintf("PeerInfo: %s", resp.PeerInfo.Name)
	case resp.Error != nil:
		return fmt.Sprintf("Error: %s", *resp.Error)
	default:
		return "empty response"
	}
}
