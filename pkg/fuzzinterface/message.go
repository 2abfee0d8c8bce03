package fuzzinterface

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/alexanderKus/risc-v-emulator/pkg/constants"
	protoerrors "github.com/alexanderKus/risc-v-emulator/pkg/errors"
	"github.com/alexanderKus/risc-v-emulator/pkg/merklizer"
	"github.com/alexanderKus/risc-v-emulator/pkg/serializer"
	"github.com/alexanderKus/risc-v-emulator/pkg/types"
)

// Protocol message types for the conformance interface

type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// FeatureSnapshots means the peer answers Checkpoint and Restore.
const FeatureSnapshots = 1 << 0

type PeerInfo struct {
	ProtocolVersion uint8
	Features        uint32
	AppVersion      Version
	Name            []byte
}

type LoadProgram struct {
	Words []uint32
}

type Step struct {
	Count uint64
}

type GetState struct{}

type GetMemory struct {
	Addr  uint32
	Count uint32
}

type Checkpoint struct{}

type Restore struct {
	Step uint64
}

type GetPageProof struct {
	Page uint32
}

// MachineState is the architectural state after a request. Fault holds the
// fault message when Status is fault.
type MachineState struct {
	PC        uint32
	Registers [constants.NumRegisters]uint32
	Status    types.ExitStatus
	Retired   uint64
	StateRoot [32]byte
	Fault     []byte
}

type Memory struct {
	Words []uint32
}

// PageProof carries a non-zero page and the Merkle trace tying it to the
// state root of the machine it was read from. Index and Count locate the
// page leaf among the root's leaves.
type PageProof struct {
	Page  uint32
	Words []uint32
	Index uint32
	Count uint32
	Trace [][32]byte
}

// Verify reports whether the proof ties the page to root.
func (p *PageProof) Verify(root [32]byte) bool {
	return merklizer.VerifyPage(root, p.Page, p.Words, int(p.Index), int(p.Count), p.Trace)
}

type RequestMessage struct {
	PeerInfo     *PeerInfo     `json:"peer_info,omitempty"`
	LoadProgram  *LoadProgram  `json:"load_program,omitempty"`
	Step         *Step         `json:"step,omitempty"`
	GetState     *GetState     `json:"get_state,omitempty"`
	GetMemory    *GetMemory    `json:"get_memory,omitempty"`
	Checkpoint   *Checkpoint   `json:"checkpoint,omitempty"`
	Restore      *Restore      `json:"restore,omitempty"`
	GetPageProof *GetPageProof `json:"get_page_proof,omitempty"`
}

type ResponseMessage struct {
	PeerInfo  *PeerInfo     `json:"peer_info,omitempty"`
	State     *MachineState `json:"state,omitempty"`
	Memory    *Memory       `json:"memory,omitempty"`
	PageProof *PageProof    `json:"page_proof,omitempty"`
	Error     *[]byte       `json:"error,omitempty"`
}

// RequestMessageType identifies the type of a request message
type RequestMessageType byte

const (
	RequestMessageTypePeerInfo     RequestMessageType = 0
	RequestMessageTypeLoadProgram  RequestMessageType = 1
	RequestMessageTypeStep         RequestMessageType = 2
	RequestMessageTypeGetState     RequestMessageType = 3
	RequestMessageTypeGetMemory    RequestMessageType = 4
	RequestMessageTypeCheckpoint   RequestMessageType = 5
	RequestMessageTypeRestore      RequestMessageType = 6
	RequestMessageTypeGetPageProof RequestMessageType = 7
)

// ResponseMessageType identifies the type of a response message
type ResponseMessageType byte

const (
	ResponseMessageTypePeerInfo  ResponseMessageType = 0
	ResponseMessageTypeState     ResponseMessageType = 1
	ResponseMessageTypeMemory    ResponseMessageType = 2
	ResponseMessageTypePageProof ResponseMessageType = 3
	ResponseMessageTypeError     ResponseMessageType = 255
)

// ErrorResponse wraps a message into an error response.
func ErrorResponse(message string) ResponseMessage {
	b := []byte(message)
	return ResponseMessage{Error: &b}
}

// EncodeMessage encodes a response as its type byte followed by the
// serialized body, prefixed with a 32-bit little-endian length.
func EncodeMessage(msg ResponseMessage) ([]byte, error) {
	var encodedMessage []byte
	var msgType ResponseMessageType

	switch {
	case msg.PeerInfo != nil:
		encodedMessage = serializer.Serialize(*msg.PeerInfo)
		msgType = ResponseMessageTypePeerInfo
	case msg.State != nil:
		encodedMessage = serializer.Serialize(*msg.State)
		msgType = ResponseMessageTypeState
	case msg.Memory != nil:
		encodedMessage = serializer.Serialize(*msg.Memory)
		msgType = ResponseMessageTypeMemory
	case msg.PageProof != nil:
		encodedMessage = serializer.Serialize(*msg.PageProof)
		msgType = ResponseMessageTypePageProof
	case msg.Error != nil:
		encodedMessage = serializer.Serialize(*msg.Error)
		msgType = ResponseMessageTypeError
	default:
		return nil, errors.New("unknown message type")
	}

	return frame(byte(msgType), encodedMessage), nil
}

// EncodeRequest is the client side counterpart of EncodeMessage.
func EncodeRequest(msg RequestMessage) ([]byte, error) {
	var encodedMessage []byte
	var msgType RequestMessageType

	switch {
	case msg.PeerInfo != nil:
		encodedMessage = serializer.Serialize(*msg.PeerInfo)
		msgType = RequestMessageTypePeerInfo
	case msg.LoadProgram != nil:
		encodedMessage = serializer.Serialize(*msg.LoadProgram)
		msgType = RequestMessageTypeLoadProgram
	case msg.Step != nil:
		encodedMessage = serializer.Serialize(*msg.Step)
		msgType = RequestMessageTypeStep
	case msg.GetState != nil:
		msgType = RequestMessageTypeGetState
	case msg.GetMemory != nil:
		encodedMessage = serializer.Serialize(*msg.GetMemory)
		msgType = RequestMessageTypeGetMemory
	case msg.Checkpoint != nil:
		msgType = RequestMessageTypeCheckpoint
	case msg.Restore != nil:
		encodedMessage = serializer.Serialize(*msg.Restore)
		msgType = RequestMessageTypeRestore
	case msg.GetPageProof != nil:
		encodedMessage = serializer.Serialize(*msg.GetPageProof)
		msgType = RequestMessageTypeGetPageProof
	default:
		return nil, errors.New("unknown message type")
	}

	return frame(byte(msgType), encodedMessage), nil
}

func frame(msgType byte, body []byte) []byte {
	out := make([]byte, 4, 5+len(body))
	binary.LittleEndian.PutUint32(out, uint32(1+len(body)))
	out = append(out, msgType)
	return append(out, body...)
}

// DecodeRequest parses an unframed request. Malformed input yields a
// protocol error.
func DecodeRequest(msgData []byte) (RequestMessage, error) {
	if len(msgData) == 0 {
		return RequestMessage{}, protoerrors.ProtocolErrorf("empty message")
	}
	msgType := RequestMessageType(msgData[0])
	body := msgData[1:]

	var req RequestMessage
	var target any
	switch msgType {
	case RequestMessageTypePeerInfo:
		req.PeerInfo = &PeerInfo{}
		target = req.PeerInfo
	case RequestMessageTypeLoadProgram:
		req.LoadProgram = &LoadProgram{}
		target = req.LoadProgram
	case RequestMessageTypeStep:
		req.Step = &Step{}
		target = req.Step
	case RequestMessageTypeGetState:
		req.GetState = &GetState{}
		target = req.GetState
	case RequestMessageTypeGetMemory:
		req.GetMemory = &GetMemory{}
		target = req.GetMemory
	case RequestMessageTypeCheckpoint:
		req.Checkpoint = &Checkpoint{}
		target = req.Checkpoint
	case RequestMessageTypeRestore:
		req.Restore = &Restore{}
		target = req.Restore
	case RequestMessageTypeGetPageProof:
		req.GetPageProof = &GetPageProof{}
		target = req.GetPageProof
	default:
		return RequestMessage{}, protoerrors.ProtocolErrorf("unknown message type: %d", msgType)
	}

	if err := serializer.Deserialize(body, target); err != nil {
		return RequestMessage{}, protoerrors.WrapProtocolError(err, "malformed request")
	}
	return req, nil
}

// DecodeResponse parses an unframed response.
func DecodeResponse(msgData []byte) (ResponseMessage, error) {
	if len(msgData) == 0 {
		return ResponseMessage{}, protoerrors.ProtocolErrorf("empty message")
	}
	msgType := ResponseMessageType(msgData[0])
	body := msgData[1:]

	var resp ResponseMessage
	var target any
	switch msgType {
	case ResponseMessageTypePeerInfo:
		resp.PeerInfo = &PeerInfo{}
		target = resp.PeerInfo
	case ResponseMessageTypeState:
		resp.State = &MachineState{}
		target = resp.State
	case ResponseMessageTypeMemory:
		resp.Memory = &Memory{}
		target = resp.Memory
	case ResponseMessageTypePageProof:
		resp.PageProof = &PageProof{}
		target = resp.PageProof
	case ResponseMessageTypeError:
		resp.Error = &[]byte{}
		target = resp.Error
	default:
		return ResponseMessage{}, protoerrors.ProtocolErrorf("unknown message type: %d", msgType)
	}

	if err := serializer.Deserialize(body, target); err != nil {
		return ResponseMessage{}, protoerrors.WrapProtocolError(err, "malformed response")
	}
	return resp, nil
}

// ReadMessageData reads one length-prefixed message and returns it without
// the prefix.
func ReadMessageData(r io.Reader) ([]byte, error) {
	// Read message length (4 bytes, little-endian)
	lengthBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBytes); err != nil {
		return nil, err
	}
	messageLength := binary.LittleEndian.Uint32(lengthBytes)
	if messageLength == 0 || messageLength > constants.MaxMessageSize {
		return nil, protoerrors.ProtocolErrorf("message length %d out of bounds", messageLength)
	}

	messageData := make([]byte, messageLength)
	if _, err := io.ReadFull(r, messageData); err != nil {
		return nil, err
	}
	return messageData, nil
}
