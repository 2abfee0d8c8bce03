package fuzzinterface

import (
	"io"
	"net"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
)

// Client talks to a conformance server over one connection.
type Client struct {
	conn io.ReadWriteCloser
	peer PeerInfo
}

// Dial connects to the unix socket at socketPath and performs the handshake.
func Dial(socketPath, name string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", socketPath)
	}
	c := NewClient(conn)
	if err := c.Handshake(name); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func NewClient(conn io.ReadWriteCloser) *Client {
	return &Client{conn: conn}
}

func (c *Client) Handshake(name string) error {
	resp, err := c.Do(RequestMessage{PeerInfo: &PeerInfo{
		ProtocolVersion: constants.ProtocolVersion,
		AppVersion:      Version{Major: 0, Minor: 1, Patch: 0},
		Name:            []byte(name),
	}})
	if err != nil {
		return errors.Wrap(err, "handshake")
	}
	if resp.PeerInfo == nil {
		return errors.New("handshake: server did not answer with PeerInfo")
	}
	c.peer = *resp.PeerInfo
	return nil
}

// Peer is the server's PeerInfo from the handshake.
func (c *Client) Peer() PeerInfo {
	return c.peer
}

// Do sends req and waits for the response.
func (c *Client) Do(req RequestMessage) (ResponseMessage, error) {
	data, err := EncodeRequest(req)
	if err != nil {
		return ResponseMessage{}, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return ResponseMessage{}, errors.Wrap(err, "send request")
	}
	msgData, err := ReadMessageData(c.conn)
	if err != nil {
		return ResponseMessage{}, errors.Wrap(err, "receive response")
	}
	return DecodeResponse(msgData)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
