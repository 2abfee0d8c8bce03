// Package net serves the conformance protocol over QUIC. Every QUIC
// connection is one session; each request travels on its own bidirectional
// stream, the first one carrying the handshake.
package net

import (
	"context"
	"crypto/ed25519"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quic-go/quic-go"

	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
)

// ALPN is the application protocol negotiated during the TLS handshake.
const ALPN = "rv32i/1"

const (
	handshakeTimeout = 10 * time.Second
	idleTimeout      = 30 * time.Second
	keepAlivePeriod  = 15 * time.Second
)

func quicConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout: handshakeTimeout,
		MaxIdleTimeout:       idleTimeout,
		KeepAlivePeriod:      keepAlivePeriod,
	}
}

// Server accepts QUIC connections and hands their streams to a conformance
// server.
type Server struct {
	backend  *fuzzinterface.Server
	listener *quic.Listener
	name     string

	mu     sync.Mutex
	closed bool
	conns  map[*quic.Conn]struct{}
	wg     sync.WaitGroup
}

// Listen binds addr (host:port, UDP) with a certificate for privateKey.
func Listen(addr string, privateKey ed25519.PrivateKey, backend *fuzzinterface.Server) (*Server, error) {
	tlsConfig, err := serverTLSConfig(privateKey)
	if err != nil {
		return nil, err
	}
	name, err := GenerateAlternativeName(privateKey.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	log.Printf("QUIC interface listening on %s as %s", listener.Addr(), name)
	return &Server{backend: backend, listener: listener, name: name, conns: make(map[*quic.Conn]struct{})}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Name is the peer name clients see in the server's certificate.
func (s *Server) Name() string {
	return s.name
}

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "failed to accept connection")
		}
		if !s.track(conn) {
			conn.CloseWithError(0, "server shutting down")
			return nil
		}
		go func() {
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) track(conn *quic.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *quic.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// Close stops accepting, closes every open connection and waits until no
// session still uses the backend.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	err := s.listener.Close()
	for conn := range s.conns {
		conn.CloseWithError(0, "server shutting down")
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) handleConnection(ctx context.Context, conn *quic.Conn) {
	session := s.backend.NewSession()
	remote := peerName(conn.ConnectionState().TLS)
	log.Printf("session %s: QUIC connection from %s (%s)", session.ID, conn.RemoteAddr(), remote)

	err := s.serveStreams(ctx, conn, session)
	if err != nil && !isClosed(err) {
		log.Printf("session %s: %v", session.ID, err)
		conn.CloseWithError(1, "protocol error")
		return
	}
	conn.CloseWithError(0, "")
}

// serveStreams handles the streams of one connection in order, so the
// session's machine is only ever used by one goroutine.
func (s *Server) serveStreams(ctx context.Context, conn *quic.Conn, session *fuzzinterface.Session) error {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return err
	}
	if err := session.Handshake(stream, stream); err != nil {
		stream.CancelRead(1)
		stream.Close()
		return err
	}
	stream.Close()

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return err
		}
		if err := s.serveStream(stream, session); err != nil {
			return err
		}
	}
}

func (s *Server) serveStream(stream *quic.Stream, session *fuzzinterface.Session) error {
	defer stream.Close()

	msgData, err := fuzzinterface.ReadMessageData(stream)
	if err != nil {
		return errors.Wrap(err, "receive request")
	}
	resp, err := session.HandleMessageData(msgData)
	if err != nil {
		return err
	}
	data, err := fuzzinterface.EncodeMessage(resp)
	if err != nil {
		return err
	}
	_, err = stream.Write(data)
	return err
}

// isClosed reports whether err only says that the peer went away.
func isClosed(err error) bool {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.ErrorCode == 0
	}
	var idleErr *quic.IdleTimeoutError
	return errors.As(err, &idleErr) || errors.Is(err, context.Canceled)
}
