package transport

// Handle is an endpoint's public API, handed out once its channel is ready
type Handle struct {
	transport *Transport
	endpoint  Endpoint
}

// Send transmits args to the endpoint. When the last argument is a Callback
// (or a func(...interface{})) it is not sent; it is called with the
// arguments of the endpoint's reply instead.
func (h *Handle) Send(args ...interface{}) {
	h.transport.apiSend(h.endpoint, args)
}

// Subscribe registers fn for every data frame the endpoint sends
func (h *Handle) Subscribe(fn Listener) {
	h.transport.Subscribe(h.endpoint, fn)
}

// Endpoint returns the endpoint this handle talks to
func (h *Handle) Endpoint() Endpoint {
	return h.endpoint
}
