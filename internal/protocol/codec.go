package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes frames for one websocket message type.
type Codec interface {
	Name() string
	MessageType() int
	Marshal(f *Frame) ([]byte, error)
	Unmarshal(data []byte, f *Frame) error
}

// ErrMalformedFrame is returned by ReadFrame when a message cannot be decoded.
// The connection itself is still usable.
var ErrMalformedFrame = errors.New("malformed frame")

// Format names accepted in the "format" query parameter.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

type jsonCodec struct{}

func (jsonCodec) Name() string                          { return FormatJSON }
func (jsonCodec) MessageType() int                      { return websocket.TextMessage }
func (jsonCodec) Marshal(f *Frame) ([]byte, error)      { return json.Marshal(f) }
func (jsonCodec) Unmarshal(data []byte, f *Frame) error { return json.Unmarshal(data, f) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                          { return FormatMsgpack }
func (msgpackCodec) MessageType() int                      { return websocket.BinaryMessage }
func (msgpackCodec) Marshal(f *Frame) ([]byte, error)      { return msgpack.Marshal(f) }
func (msgpackCodec) Unmarshal(data []byte, f *Frame) error { return msgpack.Unmarshal(data, f) }

var (
	// JSON sends frames as websocket text messages.
	JSON Codec = jsonCodec{}

	// Msgpack sends frames as websocket binary messages.
	Msgpack Codec = msgpackCodec{}
)

// CodecFor returns the codec registered under name. An empty name selects JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", FormatJSON:
		return JSON, nil
	case FormatMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", name)
	}
}

// WriteFrame encodes f and writes it as a single websocket message.
func WriteFrame(conn *websocket.Conn, c Codec, f *Frame) error {
	data, err := c.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return conn.WriteMessage(c.MessageType(), data)
}

// ReadFrame reads the next websocket message and decodes it into a frame.
func ReadFrame(conn *websocket.Conn, c Codec) (*Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var f Frame
	if err := c.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &f, nil
}
