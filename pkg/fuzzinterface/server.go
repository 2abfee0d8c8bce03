package fuzzinterface

import (
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	protoerrors "github.com/alexanderKus/risc-v-emulator/pkg/errors"
	"github.com/alexanderKus/risc-v-emulator/pkg/ram"
	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
	"github.com/alexanderKus/risc-v-emulator/pkg/staterepository"
)

// Server represents a conformance interface server. Every connection gets
// its own Session and therefore its own machine.
type Server struct {
	peerInfo PeerInfo
	repo     *staterepository.PebbleStateRepository
	observer rv32i.Observer

	mu        sync.Mutex
	closed    bool
	listeners []net.Listener
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// NewServer creates a server. repo may be nil, in which case Checkpoint and
// Restore are answered with errors. observer, if not nil, is attached to
// every session's machine and must be safe for concurrent use.
func NewServer(repo *staterepository.PebbleStateRepository, observer rv32i.Observer) *Server {
	var features uint32
	if repo != nil {
		features |= FeatureSnapshots
	}
	return &Server{
		peerInfo: PeerInfo{
			ProtocolVersion: constants.ProtocolVersion,
			Features:        features,
			AppVersion: Version{
				Major: 0,
				Minor: 1,
				Patch: 0,
			},
			Name: []byte("rv32i"),
		},
		repo:     repo,
		observer: observer,
	}
}

func (s *Server) PeerInfo() PeerInfo {
	return s.peerInfo
}

// Start listens on a unix socket at socketPath and serves until Close.
func (s *Server) Start(socketPath string) error {
	// Remove socket if it already exists
	if err := os.RemoveAll(socketPath); err != nil {
		return errors.Wrap(err, "failed to remove existing socket")
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return errors.Wrap(err, "failed to listen on socket")
	}
	log.Printf("Conformance interface listening on %s", socketPath)
	return s.Serve(listener)
}

// Serve accepts connections on l until it is closed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return nil
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "failed to accept connection")
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer s.untrack(conn)
			if err := s.handleConnection(conn); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Connection closed: %v", err)
			}
		}()
	}
}

// track registers conn with the server; it reports false once Close has
// started.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// Close stops all listeners, closes open connections and waits for their
// sessions to end.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// handleConnection handles a single client connection
func (s *Server) handleConnection(conn net.Conn) error {
	defer conn.Close()

	session := s.NewSession()
	if err := session.Handshake(conn, conn); err != nil {
		return err
	}

	// Main communication loop
	for {
		msgData, err := ReadMessageData(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("session %s: client disconnected", session.ID)
			}
			return err
		}

		resp, err := session.HandleMessageData(msgData)
		if err != nil {
			log.Printf("session %s: error handling message: %v", session.ID, err)
			return err
		}

		if err := sendMessage(conn, resp); err != nil {
			return errors.Wrapf(err, "session %s: send response", session.ID)
		}
	}
}

// sendMessage sends a message to the connection
func sendMessage(w io.Writer, msg ResponseMessage) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Session is one client's machine.
type Session struct {
	ID      uuid.UUID
	server  *Server
	machine *rv32i.Machine
}

func (s *Server) NewSession() *Session {
	m := rv32i.NewMachine()
	if s.observer != nil {
		m.SetObserver(s.observer)
	}
	return &Session{
		ID:      uuid.New(),
		server:  s,
		machine: m,
	}
}

func (ss *Session) Machine() *rv32i.Machine {
	return ss.machine
}

// Handshake expects the client's PeerInfo on r and answers with the
// server's on w.
func (ss *Session) Handshake(r io.Reader, w io.Writer) error {
	msgData, err := ReadMessageData(r)
	if err != nil {
		return errors.Wrap(err, "receive PeerInfo")
	}
	req, err := DecodeRequest(msgData)
	if err != nil {
		return err
	}
	if req.PeerInfo == nil {
		return protoerrors.ProtocolErrorf("first message is not PeerInfo")
	}

	peerInfo := req.PeerInfo
	log.Printf("session %s: handshake from %s (protocol v%d, app v%d.%d.%d)",
		ss.ID, string(peerInfo.Name), peerInfo.ProtocolVersion,
		peerInfo.AppVersion.Major, peerInfo.AppVersion.Minor, peerInfo.AppVersion.Patch)
	if peerInfo.ProtocolVersion != constants.ProtocolVersion {
		return protoerrors.ProtocolErrorf("protocol version %d, want %d", peerInfo.ProtocolVersion, constants.ProtocolVersion)
	}

	return sendMessage(w, ResponseMessage{PeerInfo: &ss.server.peerInfo})
}

// HandleMessageData processes an incoming message and returns the response.
// Malformed or unanswerable requests become error responses; only failures
// of the server itself are returned as errors.
func (ss *Session) HandleMessageData(msgData []byte) (ResponseMessage, error) {
	req, err := DecodeRequest(msgData)
	if err != nil {
		return ErrorResponse(err.Error()), nil
	}
	resp, err := ss.HandleRequest(req)
	if protoerrors.IsProtocolError(err) {
		return ErrorResponse(err.Error()), nil
	}
	return resp, err
}

func (ss *Session) HandleRequest(req RequestMessage) (ResponseMessage, error) {
	switch {
	case req.PeerInfo != nil:
		return ResponseMessage{PeerInfo: &ss.server.peerInfo}, nil
	case req.LoadProgram != nil:
		return ss.handleLoadProgram(req.LoadProgram)
	case req.Step != nil:
		return ss.handleStep(req.Step)
	case req.GetState != nil:
		return ss.state(), nil
	case req.GetMemory != nil:
		return ss.handleGetMemory(req.GetMemory)
	case req.Checkpoint != nil:
		return ss.handleCheckpoint()
	case req.Restore != nil:
		return ss.handleRestore(req.Restore)
	case req.GetPageProof != nil:
		return ss.handleGetPageProof(req.GetPageProof)
	default:
		return ResponseMessage{}, protoerrors.ProtocolErrorf("empty request")
	}
}

func (ss *Session) handleLoadProgram(lp *LoadProgram) (ResponseMessage, error) {
	ss.machine.Reset()
	if err := ss.machine.LoadProgram(lp.Words); err != nil {
		return ResponseMessage{}, protoerrors.WrapProtocolError(err, "load program")
	}
	log.Printf("session %s: loaded image %s (%d words)", ss.ID, ss.machine.ImageHash(), len(lp.Words))
	return ss.state(), nil
}

func (ss *Session) handleStep(step *Step) (ResponseMessage, error) {
	exitReason, err := ss.machine.Run(step.Count)
	if err != nil && !rv32i.IsFault(err) {
		return ResponseMessage{}, errors.Wrapf(err, "session %s: step", ss.ID)
	}
	resp := ss.state()
	if err != nil {
		resp.State.Fault = []byte(err.Error())
		log.Printf("session %s: %s", ss.ID, exitReason)
	}
	return resp, nil
}

func (ss *Session) handleGetMemory(gm *GetMemory) (ResponseMessage, error) {
	words, err := ss.machine.RAM.InspectRange(gm.Addr, gm.Count)
	if err != nil {
		if errors.Is(err, ram.ErrOutOfRange) {
			return ResponseMessage{}, protoerrors.WrapProtocolError(err, "get memory")
		}
		return ResponseMessage{}, err
	}
	return ResponseMessage{Memory: &Memory{Words: words}}, nil
}

func (ss *Session) handleGetPageProof(gp *GetPageProof) (ResponseMessage, error) {
	index, count, trace, ok := ss.machine.PageProof(gp.Page)
	if !ok {
		return ResponseMessage{}, protoerrors.ProtocolErrorf("page %d holds no data", gp.Page)
	}
	return ResponseMessage{PageProof: &PageProof{
		Page:  gp.Page,
		Words: append([]uint32(nil), ss.machine.RAM.Page(gp.Page)...),
		Index: uint32(index),
		Count: uint32(count),
		Trace: trace,
	}}, nil
}

func (ss *Session) handleCheckpoint() (ResponseMessage, error) {
	if ss.server.repo == nil {
		return ResponseMessage{}, protoerrors.ProtocolErrorf("snapshots not supported")
	}
	if err := ss.server.repo.SaveSnapshot(staterepository.Capture(ss.machine)); err != nil {
		return ResponseMessage{}, err
	}
	return ss.state(), nil
}

func (ss *Session) handleRestore(r *Restore) (ResponseMessage, error) {
	if ss.server.repo == nil {
		return ResponseMessage{}, protoerrors.ProtocolErrorf("snapshots not supported")
	}
	snap, found, err := ss.server.repo.GetSnapshot(ss.machine.ImageHash(), r.Step)
	if err != nil {
		return ResponseMessage{}, err
	}
	if !found {
		return ResponseMessage{}, protoerrors.ProtocolErrorf("no snapshot of image %s at step %d", ss.machine.ImageHash(), r.Step)
	}
	if err := staterepository.Restore(ss.machine, snap); err != nil {
		return ResponseMessage{}, protoerrors.WrapProtocolError(err, "restore")
	}
	return ss.state(), nil
}

func (ss *Session) state() ResponseMessage {
	st := ss.machine.State()
	return ResponseMessage{State: &MachineState{
		PC:        st.PC,
		Registers: st.Registers,
		Status:    st.Status,
		Retired:   st.Retired,
		StateRoot: ss.machine.StateRoot(),
		Fault:     []byte{},
	}}
}
