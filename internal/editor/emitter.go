package editor

import "sync"

// Disposable releases a subscription
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable
type DisposableFunc func()

// Dispose calls f
func (f DisposableFunc) Dispose() { f() }

// CompositeDisposable disposes a group of subscriptions at once
type CompositeDisposable struct {
	mu    sync.Mutex
	items []Disposable
	done  bool
}

// Add registers d. Adding to a disposed group disposes d immediately.
func (c *CompositeDisposable) Add(d Disposable) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		d.Dispose()
		return
	}
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Dispose disposes every registered subscription
func (c *CompositeDisposable) Dispose() {
	c.mu.Lock()
	items := c.items
	c.items = nil
	c.done = true
	c.mu.Unlock()

	for _, d := range items {
		d.Dispose()
	}
}

// emitter delivers events of one type to handlers in subscription order.
// Handlers run outside the lock.
type emitter[T any] struct {
	mu       sync.Mutex
	next     int
	handlers []handlerEntry[T]
	disposed bool
}

type handlerEntry[T any] struct {
	id int
	fn func(T)
}

func (e *emitter[T]) on(fn func(T)) Disposable {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || fn == nil {
		return DisposableFunc(func() {})
	}

	e.next++
	id := e.next
	e.handlers = append(e.handlers, handlerEntry[T]{id: id, fn: fn})

	var once sync.Once
	return DisposableFunc(func() {
		once.Do(func() { e.off(id) })
	})
}

func (e *emitter[T]) off(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

func (e *emitter[T]) emit(value T) {
	e.mu.Lock()
	handlers := append([]handlerEntry[T](nil), e.handlers...)
	e.mu.Unlock()

	for _, h := range handlers {
		h.fn(value)
	}
}

func (e *emitter[T]) dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = nil
	e.disposed = true
}
