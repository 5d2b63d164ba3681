package transport

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Envelope is the only structure carried by the raw messaging primitive.
// Channel is either "<name>:connect" for handshakes or a transport's private
// inbound channel id for steady-state data.
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload into an envelope addressed to channel
func NewEnvelope(channel string, payload interface{}) (Envelope, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode payload for %s: %w", channel, err)
	}
	return Envelope{Channel: channel, Payload: raw}, nil
}

// DecodeEnvelope parses a wire message into an envelope
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}

// Marshal encodes the envelope for the wire
func (e Envelope) Marshal() ([]byte, error) {
	return sonic.Marshal(e)
}

// Decode unmarshals the payload into v. An absent payload decodes as an
// empty object.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return sonic.Unmarshal(e.Payload, v)
}

// Endpoint is a remote message target, such as an embedded frame's window.
// Endpoints are compared by identity, so implementations must be comparable;
// pointer types are the norm.
type Endpoint interface {
	// PostMessage delivers env to the remote side. Delivery is best effort.
	PostMessage(env Envelope) error

	// Attached reports whether the endpoint still has a live parent in the
	// host's UI tree.
	Attached() bool
}

// MessageEvent is one inbound message together with the endpoint that sent it
type MessageEvent struct {
	Source Endpoint
	Data   Envelope
}
