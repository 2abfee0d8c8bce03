package net

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func TestGenerateAlternativeName(t *testing.T) {
	name, err := GenerateAlternativeName(make(ed25519.PublicKey, ed25519.PublicKeySize))
	if err != nil {
		t.Fatal(err)
	}
	if want := "e" + strings.Repeat("a", 52); name != want {
		t.Errorf("name of zero key = %q; want %q", name, want)
	}

	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	key[0] = 33 // 1 + 1*32
	name, _ = GenerateAlternativeName(key)
	if !strings.HasPrefix(name, "ebb") {
		t.Errorf("name = %q; want prefix ebb", name)
	}

	if _, err := GenerateAlternativeName(key[:31]); err == nil {
		t.Errorf("short key accepted")
	}
}

func TestCertificateVerifies(t *testing.T) {
	cert, err := generateCertificate(newKey(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := verifyPeerCertificate(cert.Certificate, nil); err != nil {
		t.Errorf("own certificate rejected: %v", err)
	}
	if err := verifyPeerCertificate(nil, nil); err == nil {
		t.Errorf("missing certificate accepted")
	}
}

func TestLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv, err := Listen("127.0.0.1:0", newKey(t), fuzzinterface.NewServer(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve(ctx)

	c, err := Dial(ctx, srv.Addr().String(), newKey(t), "loopback", srv.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.ServerName() != srv.Name() || string(c.Peer().Name) != "rv32i" {
		t.Errorf("server name %q, peer %q", c.ServerName(), c.Peer().Name)
	}

	program := []uint32{
		rv32i.EncodeI(rv32i.OpcodeOpImm, 5, 0b000, 0, 42),
		rv32i.EncodeS(rv32i.OpcodeStore, 0b010, 0, 5, 10),
	}
	if _, err := c.Do(ctx, fuzzinterface.RequestMessage{LoadProgram: &fuzzinterface.LoadProgram{Words: program}}); err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(ctx, fuzzinterface.RequestMessage{Step: &fuzzinterface.Step{Count: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.State == nil || resp.State.Status != types.ExitStatusHalted || resp.State.Registers[5] != 42 {
		t.Fatalf("state = %+v", resp.State)
	}

	resp, err = c.Do(ctx, fuzzinterface.RequestMessage{GetMemory: &fuzzinterface.GetMemory{Addr: 10, Count: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&fuzzinterface.Memory{Words: []uint32{42}}, resp.Memory); diff != "" {
		t.Errorf("memory mismatch (-want +got):\n%s", diff)
	}
}

func TestDialRejectsUnexpectedServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv, err := Listen("127.0.0.1:0", newKey(t), fuzzinterface.NewServer(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve(ctx)

	if _, err := Dial(ctx, srv.Addr().String(), newKey(t), "loopback", "e"+strings.Repeat("a", 52)); err == nil {
		t.Fatal("Dial accepted a server with the wrong name")
	}
}

func TestKeyFromSeed(t *testing.T) {
	a, err := KeyFromSeed("node-1")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := KeyFromSeed("node-1")
	c, _ := KeyFromSeed("node-2")
	if !a.Equal(b) {
		t.Errorf("same seed gave different keys")
	}
	if a.Equal(c) {
		t.Errorf("different seeds gave the same key")
	}
	r1, _ := KeyFromSeed("")
	r2, _ := KeyFromSeed("")
	if r1.Equal(r2) {
		t.Errorf("empty seed is not random")
	}
}

func TestCloseWithConnectedClient(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", newKey(t), fuzzinterface.NewServer(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.Addr().String(), newKey(t), "idle", srv.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Do(ctx, fuzzinterface.RequestMessage{GetState: &fuzzinterface.GetState{}}); err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a client was connected")
	}
	if err := <-served; err != nil {
		t.Errorf("Serve() = %v", err)
	}
	if _, err := c.Do(ctx, fuzzinterface.RequestMessage{GetState: &fuzzinterface.GetState{}}); err == nil {
		t.Error("request on a closed server succeeded")
	}
}
