package transport

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Data frame types
const (
	TypeData     = "data"
	TypeCallback = "callback"
)

// Frame kinds used for metrics and logging
const (
	KindHandshake = "handshake"
	KindData      = TypeData
	KindCallback  = TypeCallback
)

// CallbackID tags an outgoing call so its reply can be matched to the
// waiting continuation. On the wire an absent id is the JSON literal false.
type CallbackID string

// MarshalJSON encodes an empty id as false
func (c CallbackID) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("false"), nil
	}
	return sonic.Marshal(string(c))
}

// UnmarshalJSON accepts a string or a number. Any other value, including
// false and null, means no reply was requested.
func (c *CallbackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*c = ""
		return nil
	case data[0] == '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CallbackID(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			*c = ""
			return nil
		}
		*c = CallbackID(data)
		return nil
	}
}

// HandshakePayload is carried on "<name>:connect" channels.
// Input is the sender's inbound channel id; Output, when present, is the
// receiver's channel id the sender has already learned.
type HandshakePayload struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Name   string `json:"name,omitempty"`
}

// DataPayload is carried on a transport's inbound channel
type DataPayload struct {
	Type     string        `json:"type"`
	Endpoint string        `json:"endpoint,omitempty"`
	Callback CallbackID    `json:"callback"`
	Data     []interface{} `json:"data"`
}

// Frame is a validated inbound frame: one of HandshakeFrame, DataFrame,
// CallbackFrame or UnknownFrame.
type Frame interface {
	Kind() string
}

// HandshakeFrame announces a remote's inbound channel
type HandshakeFrame struct {
	Input  string
	Output string
	Name   string
}

// DataFrame delivers arguments to subscribers, optionally requesting a reply
type DataFrame struct {
	Endpoint string
	Callback CallbackID
	Data     []interface{}
}

// CallbackFrame answers an earlier call
type CallbackFrame struct {
	Callback CallbackID
	Data     []interface{}
}

// UnknownFrame is a data-channel frame with an unrecognized type
type UnknownFrame struct {
	Type string
}

func (HandshakeFrame) Kind() string { return KindHandshake }
func (DataFrame) Kind() string      { return KindData }
func (CallbackFrame) Kind() string  { return KindCallback }
func (UnknownFrame) Kind() string   { return "unknown" }

// Valid reports whether the handshake carries both input and name
func (f HandshakeFrame) Valid() bool {
	return f.Input != "" && f.Name != ""
}

// DecodeHandshake validates a handshake envelope payload
func DecodeHandshake(env Envelope) (HandshakeFrame, error) {
	var p HandshakePayload
	if err := env.Decode(&p); err != nil {
		return HandshakeFrame{}, fmt.Errorf("malformed handshake: %w", err)
	}
	return HandshakeFrame{Input: p.Input, Output: p.Output, Name: p.Name}, nil
}

// DecodeData validates a data-channel envelope payload
func DecodeData(env Envelope) (Frame, error) {
	var p DataPayload
	if err := env.Decode(&p); err != nil {
		return nil, fmt.Errorf("malformed data frame: %w", err)
	}

	data := p.Data
	if data == nil {
		data = []interface{}{}
	}

	switch p.Type {
	case TypeData:
		return DataFrame{Endpoint: p.Endpoint, Callback: p.Callback, Data: data}, nil
	case TypeCallback:
		return CallbackFrame{Callback: p.Callback, Data: data}, nil
	default:
		return UnknownFrame{Type: p.Type}, nil
	}
}
