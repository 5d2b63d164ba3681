// Package id generates the identifiers the host puts on the wire and in logs.
//
// Every id embeds a ULID drawn from one locked monotonic source, so ids are
// unique for the life of the process and later ids sort after earlier ones,
// even within a millisecond. The embedded ULID is preceded by a marker:
//
//	rempl-host:01J9Z...   channel id, "<transport name>:" + ULID
//	cb_01J9Z...           callback correlation id
//	req_01J9Z...          HTTP request id
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChannelID identifies a transport's private inbound channel
type ChannelID string

// CallbackID correlates an outgoing call with its asynchronous reply
type CallbackID string

// RequestID identifies one HTTP request in logs
type RequestID string

const (
	CallbackPrefix = "cb"
	RequestPrefix  = "req"
)

// Generator hands out ULIDs from monotonic entropy
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator reading randomness from entropy
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// Next returns the next ULID
func (g *Generator) Next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// Prefixed returns "<prefix>_<ulid>"
func (g *Generator) Prefixed(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Next())
}

// NewChannelID generates an inbound channel id in the "<name>:<ulid>" form
// peers expect.
func NewChannelID(name string) ChannelID {
	return ChannelID(name + ":" + Default().Next().String())
}

// NewCallbackID generates a new callback correlation id
func NewCallbackID() CallbackID {
	return CallbackID(Default().Prefixed(CallbackPrefix))
}

// NewRequestID generates a new request id
func NewRequestID() RequestID {
	return RequestID(Default().Prefixed(RequestPrefix))
}

func (id ChannelID) String() string  { return string(id) }
func (id CallbackID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// Name returns the transport name part of a channel id
func (id ChannelID) Name() string {
	name, _, _ := strings.Cut(string(id), ":")
	return name
}

// Split separates an id into its marker and embedded ULID. Channel ids split
// at the last ':', prefixed ids at the last '_'. A bare ULID has no marker.
func Split(s string) (marker string, value ulid.ULID, err error) {
	raw := s
	if i := strings.LastIndexAny(s, ":_"); i >= 0 {
		marker, raw = s[:i], s[i+1:]
	}
	value, err = ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return marker, value, nil
}

// IsValid reports whether s is a bare or marked ULID
func IsValid(s string) bool {
	_, _, err := Split(s)
	return err == nil
}

// Timestamp returns when the id was generated
func Timestamp(s string) (time.Time, error) {
	_, value, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(value.Time()), nil
}
