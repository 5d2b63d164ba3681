package transport

import "unsafe"

// Callback is a continuation invoked with the arguments of a reply
type Callback func(args ...interface{})

// Listener receives the arguments of every inbound data frame. When the
// remote asked for a reply, the last argument is a Callback.
type Listener func(args ...interface{})

// EnvFunc receives an endpoint's handle once its channel is ready
type EnvFunc func(h *Handle)

// binding is the per-endpoint channel state
type binding struct {
	initialized  bool
	endpointName string
	channelID    string
	callbacks    map[CallbackID]Callback
	subscribers  []Listener
	handle       *Handle
}

func newBinding(t *Transport, endpoint Endpoint) *binding {
	return &binding{
		callbacks: make(map[CallbackID]Callback),
		handle:    &Handle{transport: t, endpoint: endpoint},
	}
}

// resetCallbacks discards pending callbacks and returns how many were dropped
func (b *binding) resetCallbacks() int {
	n := len(b.callbacks)
	if n > 0 {
		b.callbacks = make(map[CallbackID]Callback)
	}
	return n
}

// waitingList holds continuations registered before an endpoint is ready
type waitingList []EnvFunc

// add appends fn unless the same function value is already queued
func (w waitingList) add(fn EnvFunc) waitingList {
	for _, existing := range w {
		if sameFunc(existing, fn) {
			return w
		}
	}
	return append(w, fn)
}

// sameFunc compares function values by identity. A func value is a pointer to
// its closure record, so two evaluations of one closure literal differ while
// copies of the same value are equal.
func sameFunc(a, b EnvFunc) bool {
	return *(*unsafe.Pointer)(unsafe.Pointer(&a)) == *(*unsafe.Pointer)(unsafe.Pointer(&b))
}

// asCallback extracts a trailing continuation from a call's arguments
func asCallback(arg interface{}) (Callback, bool) {
	switch fn := arg.(type) {
	case Callback:
		return fn, fn != nil
	case func(args ...interface{}):
		return Callback(fn), fn != nil
	default:
		return nil, false
	}
}
