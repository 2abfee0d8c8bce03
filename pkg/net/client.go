package net

import (
	"context"
	"crypto/ed25519"

	"github.com/cockroachdb/errors"
	"github.com/quic-go/quic-go"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
)

// Client is one QUIC session with a conformance server.
type Client struct {
	conn *quic.Conn
	peer fuzzinterface.PeerInfo
}

// Dial connects to addr and performs the handshake. If serverName is not
// empty the server's certificate must carry that name.
func Dial(ctx context.Context, addr string, privateKey ed25519.PrivateKey, name, serverName string) (*Client, error) {
	tlsConfig, err := clientTLSConfig(privateKey)
	if err != nil {
		return nil, err
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to establish QUIC connection")
	}
	if got := peerName(conn.ConnectionState().TLS); serverName != "" && got != serverName {
		conn.CloseWithError(1, "unexpected server")
		return nil, errors.Newf("server is %s, expected %s", got, serverName)
	}

	c := &Client{conn: conn}
	resp, err := c.Do(ctx, fuzzinterface.RequestMessage{PeerInfo: &fuzzinterface.PeerInfo{
		ProtocolVersion: constants.ProtocolVersion,
		AppVersion:      fuzzinterface.Version{Major: 0, Minor: 1, Patch: 0},
		Name:            []byte(name),
	}})
	if err != nil {
		conn.CloseWithError(1, "handshake failed")
		return nil, errors.Wrap(err, "handshake")
	}
	if resp.PeerInfo == nil {
		conn.CloseWithError(1, "handshake failed")
		return nil, errors.New("handshake: server did not answer with PeerInfo")
	}
	c.peer = *resp.PeerInfo
	return c, nil
}

func (c *Client) Peer() fuzzinterface.PeerInfo {
	return c.peer
}

// ServerName is the verified name from the server's certificate.
func (c *Client) ServerName() string {
	return peerName(c.conn.ConnectionState().TLS)
}

// Do sends req on a new stream and reads the response from it.
func (c *Client) Do(ctx context.Context, req fuzzinterface.RequestMessage) (fuzzinterface.ResponseMessage, error) {
	data, err := fuzzinterface.EncodeRequest(req)
	if err != nil {
		return fuzzinterface.ResponseMessage{}, err
	}
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return fuzzinterface.ResponseMessage{}, errors.Wrap(err, "open stream")
	}
	if _, err := stream.Write(data); err != nil {
		stream.CancelRead(1)
		return fuzzinterface.ResponseMessage{}, errors.Wrap(err, "send request")
	}
	stream.Close()

	msgData, err := fuzzinterface.ReadMessageData(stream)
	if err != nil {
		return fuzzinterface.ResponseMessage{}, errors.Wrap(err, "receive response")
	}
	return fuzzinterface.DecodeResponse(msgData)
}

func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "")
}
