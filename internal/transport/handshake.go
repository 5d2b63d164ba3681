package transport

import (
	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/shared/id"
	"go.uber.org/zap"
)

func newInputChannelID(name string) string {
	return id.NewChannelID(name).String()
}

// Handshake announces this transport's inbound channel to target. output is
// the target's own inbound channel when already known, and tells the target
// no further reply is needed.
func (t *Transport) Handshake(target Endpoint, output string) {
	_ = t.post(target, t.name+":connect", HandshakePayload{
		Input:  t.inputChannelID,
		Output: output,
	}, KindHandshake)
}

// onConnect handles a handshake frame from source.
//
// The binding learns the remote's inbound channel and name. A name change
// means a new logical session on a reused endpoint, so pending callbacks are
// discarded. The first handshake makes the endpoint ready and drains its
// waiting list; a frame without output gets our own handshake in reply.
func (t *Transport) onConnect(source Endpoint, env Envelope) {
	frame, err := DecodeHandshake(env)
	if err != nil || !frame.Valid() {
		t.metrics.RecordFrameDropped(monitoring.DropMalformed)
		t.debugWarn("Dropped malformed handshake", zap.ByteString("payload", env.Payload))
		return
	}

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		t.metrics.RecordFrameDropped(monitoring.DropDisposed)
		return
	}

	b := t.sources[source]
	if b == nil {
		b = newBinding(t, source)
		t.sources[source] = b
		t.metrics.SetBindings(len(t.sources))
	}

	if b.endpointName != frame.Name {
		t.metrics.AddPendingCallbacks(-b.resetCallbacks())
	}
	b.endpointName = frame.Name
	b.channelID = frame.Input

	var ready waitingList
	if !b.initialized {
		b.initialized = true
		ready = t.waiting[source]
		delete(t.waiting, source)
	}
	handle := b.handle
	t.mu.Unlock()

	t.metrics.IncHandshakes()
	t.metrics.RecordFrameReceived(KindHandshake)

	if frame.Output == "" {
		t.Handshake(source, frame.Input)
	}

	for _, fn := range ready {
		fn(handle)
	}
}
