package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MessageListener receives every message arriving at a window
type MessageListener func(ev MessageEvent)

// MessageSource is the listener side of the raw messaging primitive
type MessageSource interface {
	AddMessageListener(fn MessageListener) (remove func())
}

type listenerEntry struct {
	fn MessageListener
}

// Window is the host's message event loop. Endpoints post inbound messages
// with Post; Run delivers them one at a time, in arrival order, to every
// registered listener.
type Window struct {
	mu        sync.Mutex
	listeners []*listenerEntry
	queue     []MessageEvent
	wake      chan struct{}
	logger    *zap.Logger
}

// NewWindow creates a window. A nil logger discards output.
func NewWindow(logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// AddMessageListener registers fn and returns a function that removes it
func (w *Window) AddMessageListener(fn MessageListener) func() {
	entry := &listenerEntry{fn: fn}

	w.mu.Lock()
	w.listeners = append(w.listeners, entry)
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			for i, l := range w.listeners {
				if l == entry {
					w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Post enqueues ev for delivery by Run. It never blocks.
func (w *Window) Post(ev MessageEvent) {
	w.mu.Lock()
	w.queue = append(w.queue, ev)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Dispatch delivers ev synchronously to the current listeners
func (w *Window) Dispatch(ev MessageEvent) {
	w.mu.Lock()
	listeners := append([]*listenerEntry(nil), w.listeners...)
	w.mu.Unlock()

	for _, l := range listeners {
		w.deliver(l, ev)
	}
}

func (w *Window) deliver(l *listenerEntry, ev MessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Message listener panicked",
				zap.String("channel", ev.Data.Channel),
				zap.Any("panic", r))
		}
	}()
	l.fn(ev)
}

// Flush delivers every queued message in the calling goroutine. It must not
// be used while Run is active.
func (w *Window) Flush() int {
	n := 0
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return n
		}
		ev := w.queue[0]
		w.queue[0] = MessageEvent{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.Dispatch(ev)
		n++
	}
}

// Pending returns the number of queued messages
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Run delivers queued messages until ctx is cancelled
func (w *Window) Run(ctx context.Context) error {
	for {
		w.Flush()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		}
	}
}
