package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowFlushPreservesOrder(t *testing.T) {
	w := NewWindow(nil)

	var got []string
	w.AddMessageListener(func(ev MessageEvent) { got = append(got, ev.Data.Channel) })

	for _, ch := range []string{"a", "b", "c"} {
		w.Post(MessageEvent{Data: Envelope{Channel: ch}})
	}
	assert.Equal(t, 3, w.Pending())

	assert.Equal(t, 3, w.Flush())
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, w.Pending())
}

func TestWindowRemoveListener(t *testing.T) {
	w := NewWindow(nil)

	calls := 0
	remove := w.AddMessageListener(func(MessageEvent) { calls++ })
	w.Dispatch(MessageEvent{})
	remove()
	remove()
	w.Dispatch(MessageEvent{})

	assert.Equal(t, 1, calls)
}

func TestWindowRecoversListenerPanic(t *testing.T) {
	w := NewWindow(nil)

	reached := false
	w.AddMessageListener(func(MessageEvent) { panic("boom") })
	w.AddMessageListener(func(MessageEvent) { reached = true })

	assert.NotPanics(t, func() { w.Dispatch(MessageEvent{}) })
	assert.True(t, reached)
}

func TestWindowRun(t *testing.T) {
	w := NewWindow(nil)

	var mu sync.Mutex
	var got []string
	w.AddMessageListener(func(ev MessageEvent) {
		mu.Lock()
		got = append(got, ev.Data.Channel)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.Post(MessageEvent{Data: Envelope{Channel: "one"}})
	w.Post(MessageEvent{Data: Envelope{Channel: "two"}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, got)
}
