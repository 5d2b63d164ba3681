package transport

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/settings"
	"go.uber.org/zap"
)

// Observer is the settings source the debug flag is read from
type Observer interface {
	Observe(key string, fn func(value interface{})) settings.Disposable
}

// Config configures a Transport
type Config struct {
	Name      string // this side's name, used for "<name>:connect" and channel ids
	ConnectTo string // the remote side's name; handshakes arrive on "<ConnectTo>:connect"
	Debug     bool   // initial debug mode when Settings is nil

	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Settings Observer
}

// Transport multiplexes per-endpoint channels over one raw message source.
//
// Every failure mode is a no-op: malformed handshakes, frames from unknown
// sources, replies with unknown callback ids and sends to endpoints that are
// not ready are dropped, counted, and logged only in debug mode.
type Transport struct {
	name           string
	connectTo      string
	inputChannelID string

	logger  *zap.Logger
	metrics *monitoring.Metrics
	debug   atomic.Bool

	removeListener func()
	configObserver settings.Disposable

	mu       sync.Mutex
	sources  map[Endpoint]*binding
	waiting  map[Endpoint]waitingList
	disposed bool
}

// New creates a transport listening on source
func New(source MessageSource, cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Transport{
		name:           cfg.Name,
		connectTo:      cfg.ConnectTo,
		inputChannelID: newInputChannelID(cfg.Name),
		logger:         logger.Named("transport"),
		metrics:        cfg.Metrics,
		sources:        make(map[Endpoint]*binding),
		waiting:        make(map[Endpoint]waitingList),
	}
	t.debug.Store(cfg.Debug)

	if cfg.Settings != nil {
		t.configObserver = cfg.Settings.Observe(settings.KeyDebug, func(value interface{}) {
			enabled, _ := value.(bool)
			t.debug.Store(enabled)
		})
	}

	t.removeListener = source.AddMessageListener(t.handleMessage)
	return t
}

// Name returns this side's name
func (t *Transport) Name() string { return t.name }

// ConnectTo returns the remote side's name
func (t *Transport) ConnectTo() string { return t.connectTo }

// InputChannelID returns the private channel data frames must be addressed to
func (t *Transport) InputChannelID() string { return t.inputChannelID }

// Debug reports whether traffic logging is on
func (t *Transport) Debug() bool { return t.debug.Load() }

// SetDebug toggles traffic logging
func (t *Transport) SetDebug(enabled bool) { t.debug.Store(enabled) }

// Ready reports whether endpoint has completed its handshake
func (t *Transport) Ready(endpoint Endpoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.sources[endpoint]
	return b != nil && b.initialized
}

// Bindings returns the number of endpoints with a channel binding
func (t *Transport) Bindings() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sources)
}

// handleMessage routes one raw message by channel
func (t *Transport) handleMessage(ev MessageEvent) {
	if ev.Source == nil {
		return
	}

	if t.debug.Load() {
		if channel, ok := t.channelOf(ev.Source); ok {
			t.logger.Info("Message received",
				zap.String("from", channel),
				zap.String("channel", ev.Data.Channel),
				zap.ByteString("payload", ev.Data.Payload))
		}
	}

	switch ev.Data.Channel {
	case t.connectTo + ":connect":
		t.onConnect(ev.Source, ev.Data)
	case t.inputChannelID:
		t.onData(ev.Source, ev.Data)
	default:
		t.metrics.RecordFrameDropped(monitoring.DropUnknownChannel)
	}
}

// Post sends payload to target on channel. Failures are dropped.
func (t *Transport) Post(target Endpoint, channel string, payload interface{}) {
	_ = t.post(target, channel, payload, "raw")
}

func (t *Transport) post(target Endpoint, channel string, payload interface{}, kind string) error {
	if target == nil {
		return nil
	}

	env, err := NewEnvelope(channel, payload)
	if err != nil {
		t.metrics.RecordFrameDropped(monitoring.DropMalformed)
		t.debugWarn("Failed to encode outgoing frame", zap.String("channel", channel), zap.Error(err))
		return err
	}

	if t.debug.Load() {
		to, _ := t.channelOf(target)
		t.logger.Info("Sending message",
			zap.String("to", to),
			zap.String("channel", channel),
			zap.ByteString("payload", env.Payload))
	}

	if err := target.PostMessage(env); err != nil {
		t.metrics.RecordFrameDropped(monitoring.DropPostFailed)
		t.debugWarn("Failed to post frame", zap.String("channel", channel), zap.Error(err))
		return err
	}

	t.metrics.RecordFrameSent(kind)
	return nil
}

// GetEnv calls fn with endpoint's handle as soon as the endpoint is ready:
// immediately if it already is, otherwise after its first handshake.
// Queuing the same function twice for one endpoint has no effect.
func (t *Transport) GetEnv(endpoint Endpoint, fn EnvFunc) {
	if endpoint == nil || fn == nil {
		return
	}

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}

	if b := t.sources[endpoint]; b != nil && b.initialized {
		h := b.handle
		t.mu.Unlock()
		fn(h)
		return
	}

	t.waiting[endpoint] = t.waiting[endpoint].add(fn)
	t.mu.Unlock()
}

// Subscribe registers fn for every inbound data frame from endpoint.
// It is a no-op when endpoint has no binding.
func (t *Transport) Subscribe(endpoint Endpoint, fn Listener) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.sources[endpoint]
	if b == nil || t.disposed {
		return
	}
	b.subscribers = append(b.subscribers, fn)
}

// CleanupTargets removes bindings for every endpoint that is no longer
// attached to the host
func (t *Transport) CleanupTargets() {
	t.mu.Lock()
	var detached []Endpoint
	for endpoint := range t.sources {
		if !endpoint.Attached() {
			detached = append(detached, endpoint)
		}
	}
	t.mu.Unlock()

	for _, endpoint := range detached {
		t.RemoveTarget(endpoint)
	}
}

// RemoveTarget deletes endpoint's binding and waiting list. Pending
// callbacks are discarded. Idempotent.
func (t *Transport) RemoveTarget(endpoint Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.sources[endpoint]; ok {
		t.metrics.AddPendingCallbacks(-len(b.callbacks))
		delete(t.sources, endpoint)
	}
	delete(t.waiting, endpoint)
	t.metrics.SetBindings(len(t.sources))
}

// Dispose detaches from the message source, stops observing the debug
// setting and clears every binding. The transport is unusable afterwards.
func (t *Transport) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true

	pending := 0
	for _, b := range t.sources {
		pending += len(b.callbacks)
	}
	t.sources = make(map[Endpoint]*binding)
	t.waiting = make(map[Endpoint]waitingList)
	t.mu.Unlock()

	t.metrics.AddPendingCallbacks(-pending)
	t.metrics.SetBindings(0)

	if t.removeListener != nil {
		t.removeListener()
	}
	if t.configObserver != nil {
		t.configObserver.Dispose()
	}
}

// channelOf returns the remote channel id bound to endpoint
func (t *Transport) channelOf(endpoint Endpoint) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.sources[endpoint]
	if b == nil {
		return "", false
	}
	return b.channelID, true
}

func (t *Transport) debugWarn(msg string, fields ...zap.Field) {
	if t.debug.Load() {
		t.logger.Warn(msg, fields...)
	}
}
