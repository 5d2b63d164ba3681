package transport

import (
	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/shared/id"
	"go.uber.org/zap"
)

// apiSend transmits args to endpoint as a data frame. A trailing Callback is
// stored under a fresh id and invoked when the matching reply arrives.
func (t *Transport) apiSend(endpoint Endpoint, args []interface{}) {
	t.mu.Lock()
	b := t.sources[endpoint]
	if b == nil || !b.initialized || t.disposed {
		t.mu.Unlock()
		t.metrics.RecordFrameDropped(monitoring.DropNotReady)
		return
	}

	data := append([]interface{}{}, args...)
	var callbackID CallbackID
	if n := len(data); n > 0 {
		if cb, ok := asCallback(data[n-1]); ok {
			callbackID = CallbackID(id.NewCallbackID())
			b.callbacks[callbackID] = cb
			data = data[:n-1]
			t.metrics.AddPendingCallbacks(1)
		}
	}
	channel := b.channelID
	name := b.endpointName
	t.mu.Unlock()

	err := t.post(endpoint, channel, DataPayload{
		Type:     TypeData,
		Endpoint: name,
		Callback: callbackID,
		Data:     data,
	}, KindData)

	if err != nil && callbackID != "" {
		t.mu.Lock()
		if _, ok := b.callbacks[callbackID]; ok {
			delete(b.callbacks, callbackID)
			t.metrics.AddPendingCallbacks(-1)
		}
		t.mu.Unlock()
	}
}

// onData handles a frame on our inbound channel
func (t *Transport) onData(source Endpoint, env Envelope) {
	frame, err := DecodeData(env)
	if err != nil {
		t.metrics.RecordFrameDropped(monitoring.DropMalformed)
		t.debugWarn("Dropped malformed data frame", zap.Error(err))
		return
	}

	t.mu.Lock()
	b := t.sources[source]
	if b == nil || t.disposed {
		t.mu.Unlock()
		t.metrics.RecordFrameDropped(monitoring.DropUnknownSource)
		if t.debug.Load() {
			t.logger.Error("Unknown source", zap.ByteString("payload", env.Payload))
		}
		return
	}

	switch f := frame.(type) {
	case CallbackFrame:
		cb, ok := b.callbacks[f.Callback]
		if ok {
			delete(b.callbacks, f.Callback)
		}
		t.mu.Unlock()

		if !ok {
			t.metrics.RecordFrameDropped(monitoring.DropUnknownCallback)
			return
		}
		t.metrics.AddPendingCallbacks(-1)
		t.metrics.RecordFrameReceived(KindCallback)
		cb(f.Data...)

	case DataFrame:
		subscribers := append([]Listener(nil), b.subscribers...)
		t.mu.Unlock()

		t.metrics.RecordFrameReceived(KindData)

		var reply Callback
		if f.Callback != "" {
			reply = t.replyCallback(source, f.Callback)
		}
		for _, fn := range subscribers {
			args := append(make([]interface{}, 0, len(f.Data)+1), f.Data...)
			if reply != nil {
				args = append(args, reply)
			}
			fn(args...)
		}

	default:
		t.mu.Unlock()
		t.metrics.RecordFrameDropped(monitoring.DropUnknownType)
		if u, ok := frame.(UnknownFrame); ok {
			t.debugWarn("Unknown message type", zap.String("type", u.Type), zap.ByteString("payload", env.Payload))
		}
	}
}

// replyCallback builds the continuation handed to subscribers when the
// remote asked for a reply. Invoking it answers on the endpoint's current
// channel.
func (t *Transport) replyCallback(endpoint Endpoint, callbackID CallbackID) Callback {
	return func(args ...interface{}) {
		t.mu.Lock()
		b := t.sources[endpoint]
		if b == nil || t.disposed {
			t.mu.Unlock()
			t.metrics.RecordFrameDropped(monitoring.DropNotReady)
			return
		}
		channel := b.channelID
		t.mu.Unlock()

		data := args
		if data == nil {
			data = []interface{}{}
		}
		_ = t.post(endpoint, channel, DataPayload{
			Type:     TypeCallback,
			Callback: callbackID,
			Data:     data,
		}, KindCallback)
	}
}
