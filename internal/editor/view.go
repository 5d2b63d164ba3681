package editor

import (
	"sync"

	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/google/uuid"
)

// ViewStatus is the connection state of a view's environment
type ViewStatus string

const (
	StatusConnecting ViewStatus = "connecting"
	StatusReady      ViewStatus = "ready"
	StatusFailed     ViewStatus = "failed"
	StatusClosed     ViewStatus = "closed"
)

// detacher is implemented by endpoints that can be removed from the host
type detacher interface {
	Detach()
}

// RemplView is a pane item embedding one rempl client
type RemplView struct {
	*Panel

	id        string
	url       string
	transport *transport.Transport

	mu        sync.RWMutex
	publisher interface{}
	endpoint  transport.Endpoint
	handle    *transport.Handle
	status    ViewStatus
	err       error
}

// ViewInfo describes a view for the HTTP API
type ViewInfo struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Title     string      `json:"title"`
	Publisher interface{} `json:"publisher,omitempty"`
	Status    ViewStatus  `json:"status"`
	Error     string      `json:"error,omitempty"`
}

// NewRemplView creates a view for the client at url
func NewRemplView(url string, tr *transport.Transport) *RemplView {
	panel := NewPanel()
	panel.title = "Rempl - " + url
	return &RemplView{
		Panel:     panel,
		id:        uuid.New().String(),
		url:       url,
		transport: tr,
		status:    StatusConnecting,
	}
}

// ID returns the view id
func (v *RemplView) ID() string { return v.id }

// URL returns the client URL
func (v *RemplView) URL() string { return v.url }

// Publisher returns the publisher the environment last reported. It is
// whatever value the environment sent, usually a string or an object.
func (v *RemplView) Publisher() interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.publisher
}

// SetPublisher records the environment's selected publisher
func (v *RemplView) SetPublisher(publisher interface{}) {
	v.mu.Lock()
	v.publisher = publisher
	v.mu.Unlock()
}

// Status returns the connection state
func (v *RemplView) Status() ViewStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Err returns the error that made the view fail, if any
func (v *RemplView) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Endpoint returns the attached endpoint, or nil
func (v *RemplView) Endpoint() transport.Endpoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.endpoint
}

// Handle returns the endpoint's handle once it is ready, or nil
func (v *RemplView) Handle() *transport.Handle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.handle
}

// Serialize returns the state needed to recreate the view
func (v *RemplView) Serialize() ViewState {
	return ViewState{URL: v.url, Publisher: v.Publisher()}
}

// Info returns a snapshot for the HTTP API
func (v *RemplView) Info() ViewInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info := ViewInfo{
		ID:        v.id,
		URL:       v.url,
		Title:     v.Title(),
		Publisher: v.publisher,
		Status:    v.status,
	}
	if v.err != nil {
		info.Error = v.err.Error()
	}
	return info
}

// Attach binds the view to endpoint. onReady runs once the endpoint
// completes its handshake.
func (v *RemplView) Attach(endpoint transport.Endpoint, onReady func(*RemplView, *transport.Handle)) {
	v.mu.Lock()
	v.endpoint = endpoint
	v.status = StatusConnecting
	v.mu.Unlock()

	v.transport.GetEnv(endpoint, func(h *transport.Handle) {
		v.mu.Lock()
		if v.endpoint != endpoint || v.status == StatusClosed {
			v.mu.Unlock()
			return
		}
		v.handle = h
		v.status = StatusReady
		v.mu.Unlock()

		if onReady != nil {
			onReady(v, h)
		}
	})
}

// SendToSandbox sends args to the embedded environment. It reports false
// when the environment is not ready.
func (v *RemplView) SendToSandbox(args ...interface{}) bool {
	h := v.Handle()
	if h == nil {
		return false
	}
	h.Send(args...)
	return true
}

func (v *RemplView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = StatusFailed
	v.err = err
}

// Detach removes the embedded environment and its transport binding
func (v *RemplView) Detach() {
	endpoint := v.release()
	if endpoint == nil {
		return
	}
	v.transport.RemoveTarget(endpoint)
}

// Destroy removes the environment from the host, drops its transport
// binding and emits did-destroy. Detachable endpoints are swept with the
// rest of the detached targets; any other endpoint is removed directly.
func (v *RemplView) Destroy() {
	switch endpoint := v.release(); endpoint.(type) {
	case nil:
	case detacher:
		v.transport.CleanupTargets()
	default:
		v.transport.RemoveTarget(endpoint)
	}
	v.Panel.Destroy()
}

// release detaches the endpoint and returns it, or nil when there was none
func (v *RemplView) release() transport.Endpoint {
	v.mu.Lock()
	endpoint := v.endpoint
	v.endpoint = nil
	v.handle = nil
	v.status = StatusClosed
	v.mu.Unlock()

	if d, ok := endpoint.(detacher); ok {
		d.Detach()
	}
	return endpoint
}
