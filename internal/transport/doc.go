/*
Package transport multiplexes logical channels between the host and embedded
sandboxes over a single raw messaging primitive.

# Wire format

Every message is an Envelope {channel, payload}. Two channels are accepted:

  - "<connectTo>:connect" carries handshakes {input, output?, name}
  - the transport's private inbound channel ("<name>:<ulid>") carries data
    frames {type: "data"|"callback", endpoint?, callback: id|false, data: [...]}

Anything else is ignored, which lets any number of transports share one
message source without cross-talk.

# Handshake

Each endpoint moves UNSEEN -> NEGOTIATING -> READY. A handshake with input and
name binds the endpoint to the remote's inbound channel; if the frame lacks
output the host answers with its own handshake so both sides learn each
other's channel. The first handshake drains continuations queued by GetEnv.

# Calls

	tr.GetEnv(endpoint, func(h *transport.Handle) {
		h.Subscribe(func(args ...interface{}) { ... })
		h.Send("getHostInfo", transport.Callback(func(args ...interface{}) { ... }))
	})

A trailing Callback is kept in the binding under a fresh correlation id; the
remote's callback frame with that id invokes it exactly once.
*/
package transport
