package sandbox

import (
	"context"
	"sync"
	"time"
)

// Pool keeps warm runtimes for frames. Detaching a frame resets its runtime
// and returns it to the pool, so at most size frames are open at once.
type Pool struct {
	config   Config
	runtimes chan *Runtime
	size     int
	wait     time.Duration
	mu       sync.RWMutex
	closed   bool
}

// PoolStats describes pool occupancy
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// NewPool creates size runtimes up front. Opening a frame waits up to the
// configured timeout for one to be free.
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	wait := config.Timeout
	if wait <= 0 {
		wait = 5 * time.Second
	}

	pool := &Pool{
		config:   config,
		runtimes: make(chan *Runtime, size),
		size:     size,
		wait:     wait,
	}

	for i := 0; i < size; i++ {
		rt, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

// Acquire takes a free runtime, waiting until one is released
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	select {
	case rt, ok := <-p.runtimes:
		if !ok {
			return nil, ErrPoolClosed
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets rt and returns it to the pool. A runtime that fails to
// reset is replaced by a fresh one.
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		if fresh, ferr := New(p.config); ferr == nil {
			p.runtimes <- fresh
		}
		return err
	}

	select {
	case p.runtimes <- rt:
		return nil
	default:
		return rt.Close()
	}
}

// Open acquires a runtime and attaches a new frame to host
func (p *Pool) Open(ctx context.Context, host Poster, opts FrameOptions) (*Frame, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	frame, err := NewFrame(host, rt, opts)
	if err != nil {
		_ = p.Release(rt)
		return nil, err
	}
	frame.release = func(rt *Runtime) { _ = p.Release(rt) }
	return frame, nil
}

// Close closes the pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}

	return nil
}

// Stats returns pool occupancy
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.runtimes)
	if p.closed {
		available = 0
	}
	return PoolStats{
		Size:      p.size,
		Available: available,
		InUse:     p.size - available,
		Closed:    p.closed,
	}
}
