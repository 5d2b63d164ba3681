package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"go.uber.org/zap"
)

// EventDidChangeActivePaneItem is broadcast when the active pane item changes
const EventDidChangeActivePaneItem = "DidChangeActivePaneItem"

var ErrNotActive = errors.New("plugin is not active")

// PaneInfo describes the active pane item to environments
type PaneInfo struct {
	Title    string `json:"title"`
	IsEditor bool   `json:"isEditor"`
}

// ActivePaneEvent is the DidChangeActivePaneItem payload
type ActivePaneEvent struct {
	Type string   `json:"type"`
	Pane PaneInfo `json:"pane"`
}

// Options wires a Plugin to its collaborators
type Options struct {
	Name      string
	Version   string
	Workspace *Workspace
	Transport *transport.Transport
	Opener    Opener
	Dialog    *ServerDialog
	State     *StateStore
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Plugin connects rempl clients to the workspace: it opens views, answers
// environment requests and broadcasts workspace events.
type Plugin struct {
	name      string
	version   string
	workspace *Workspace
	transport *transport.Transport
	opener    Opener
	dialog    *ServerDialog
	state     *StateStore
	locator   *Locator
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	mu          sync.RWMutex
	active      bool
	views       []*RemplView
	remotes     map[transport.Endpoint]*transport.Handle
	disposables *CompositeDisposable
}

// NewPlugin creates an inactive plugin
func NewPlugin(opts Options) (*Plugin, error) {
	if opts.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dialog == nil {
		opts.Dialog = NewServerDialog("", nil)
	}
	if opts.State == nil {
		opts.State = NewStateStore("")
	}
	if opts.Name == "" {
		opts.Name = opts.Transport.Name()
	}

	return &Plugin{
		name:      opts.Name,
		version:   opts.Version,
		workspace: opts.Workspace,
		transport: opts.Transport,
		opener:    opts.Opener,
		dialog:    opts.Dialog,
		state:     opts.State,
		locator:   NewLocator(opts.Workspace.Root()),
		metrics:   opts.Metrics,
		logger:    opts.Logger.Named("plugin"),
		remotes:   make(map[transport.Endpoint]*transport.Handle),
	}, nil
}

// Activate subscribes to workspace events. Calling it twice is a no-op.
func (p *Plugin) Activate() {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.disposables = &CompositeDisposable{}
	disposables := p.disposables
	p.mu.Unlock()

	p.dialog.Reset()

	disposables.Add(p.workspace.OnDidAddPaneItem(func(item PaneItem) {
		if view, ok := item.(*RemplView); ok {
			p.track(view)
		}
	}))
	disposables.Add(p.workspace.OnDidDestroyPaneItem(func(item PaneItem) {
		if view, ok := item.(*RemplView); ok {
			p.untrack(view)
		}
	}))
	disposables.Add(p.workspace.OnDidChangeActivePaneItem(func(PaneItem) {
		p.DidChangeActivePaneItem()
	}))

	p.logger.Info("Plugin activated", zap.String("root", p.workspace.Root()))
}

// Deactivate unsubscribes from the workspace, hides the dialog and forgets
// every view and remote endpoint. Views stay in the workspace.
func (p *Plugin) Deactivate() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	disposables := p.disposables
	p.disposables = nil
	p.views = nil
	p.remotes = make(map[transport.Endpoint]*transport.Handle)
	p.mu.Unlock()

	disposables.Dispose()
	p.dialog.Hide()
	p.metrics.SetViewsActive(0)
	p.logger.Info("Plugin deactivated")
}

// Active reports whether the plugin is activated
func (p *Plugin) Active() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Dialog returns the server URL dialog
func (p *Plugin) Dialog() *ServerDialog { return p.dialog }

// Workspace returns the workspace the plugin serves
func (p *Plugin) Workspace() *Workspace { return p.workspace }

// Connect shows the server URL dialog
func (p *Plugin) Connect() {
	p.dialog.Show()
}

// ConfirmServer opens a view for the URL in the dialog. On an invalid URL
// the dialog stays open.
func (p *Plugin) ConfirmServer(ctx context.Context) (*RemplView, error) {
	url, err := ValidateServerURL(p.dialog.Text())
	if err != nil {
		return nil, err
	}
	view, err := p.AddClient(ctx, url)
	if err != nil {
		return nil, err
	}
	p.dialog.Reset()
	p.dialog.Hide()
	return view, nil
}

// CancelServer closes the dialog and discards its input
func (p *Plugin) CancelServer() {
	if !p.dialog.IsVisible() {
		return
	}
	p.dialog.Reset()
	p.dialog.Hide()
}

// AddClient opens a view for the rempl client at url and activates it
func (p *Plugin) AddClient(ctx context.Context, url string) (*RemplView, error) {
	if !p.Active() {
		return nil, ErrNotActive
	}
	url, err := ValidateServerURL(url)
	if err != nil {
		return nil, err
	}

	view := NewRemplView(url, p.transport)
	p.track(view)
	p.workspace.AddItem(view)
	p.workspace.ActivateItem(view)
	p.open(ctx, view)
	return view, nil
}

// DeserializeClient recreates a view from saved state. A state without a
// URL yields no view.
func (p *Plugin) DeserializeClient(ctx context.Context, state ViewState) (*RemplView, error) {
	if !p.Active() {
		return nil, ErrNotActive
	}
	if state.URL == "" {
		return nil, nil
	}

	view := NewRemplView(state.URL, p.transport)
	view.SetPublisher(state.Publisher)
	p.track(view)
	p.workspace.AddItem(view)
	p.open(ctx, view)
	return view, nil
}

// open attaches the view to a new endpoint. Failures mark the view failed
// and leave it in the pane.
func (p *Plugin) open(ctx context.Context, view *RemplView) {
	if p.opener == nil {
		return
	}
	err := p.opener.Open(ctx, view.URL(), func(endpoint transport.Endpoint) {
		view.Attach(endpoint, p.onViewReady)
	})
	if err != nil {
		view.fail(err)
		p.logger.Warn("Failed to open client", zap.String("url", view.URL()), zap.Error(err))
	}
}

func (p *Plugin) onViewReady(view *RemplView, h *transport.Handle) {
	h.Subscribe(p.requestHandler(view))
	p.logger.Info("Client connected", zap.String("view", view.ID()), zap.String("url", view.URL()))
}

// AttachEndpoint serves an endpoint that is not embedded in a pane, such as
// a websocket connection. It joins broadcasts after its handshake.
func (p *Plugin) AttachEndpoint(endpoint transport.Endpoint) {
	p.transport.GetEnv(endpoint, func(h *transport.Handle) {
		p.mu.Lock()
		if !p.active {
			p.mu.Unlock()
			return
		}
		p.remotes[endpoint] = h
		p.mu.Unlock()

		h.Subscribe(p.requestHandler(nil))
	})
}

// DetachEndpoint forgets an endpoint registered with AttachEndpoint
func (p *Plugin) DetachEndpoint(endpoint transport.Endpoint) {
	p.mu.Lock()
	delete(p.remotes, endpoint)
	p.mu.Unlock()
}

// Broadcast sends payload to every ready view and remote endpoint and
// returns how many received it
func (p *Plugin) Broadcast(payload interface{}) int {
	p.mu.RLock()
	views := append([]*RemplView(nil), p.views...)
	remotes := make([]*transport.Handle, 0, len(p.remotes))
	for _, h := range p.remotes {
		remotes = append(remotes, h)
	}
	p.mu.RUnlock()

	sent := 0
	for _, view := range views {
		if view.SendToSandbox(payload) {
			sent++
		}
	}
	for _, h := range remotes {
		h.Send(payload)
		sent++
	}
	return sent
}

// DidChangeActivePaneItem tells every environment about the active item
func (p *Plugin) DidChangeActivePaneItem() {
	item := p.workspace.ActiveItem()
	if item == nil {
		return
	}
	_, isEditor := item.(*TextEditor)
	p.Broadcast(ActivePaneEvent{
		Type: EventDidChangeActivePaneItem,
		Pane: PaneInfo{Title: item.Title(), IsEditor: isEditor},
	})
}

// HostInfo describes the host to environments
func (p *Plugin) HostInfo() HostInfo {
	return HostInfo{
		Name:    p.name,
		Version: p.version,
		Root:    p.workspace.Root(),
		Views:   len(p.Views()),
		Debug:   p.transport.Debug(),
	}
}

// Views returns the tracked views in creation order
func (p *Plugin) Views() []*RemplView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*RemplView(nil), p.views...)
}

// View returns the view with id
func (p *Plugin) View(id string) (*RemplView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, view := range p.views {
		if view.ID() == id {
			return view, true
		}
	}
	return nil, false
}

// CloseView destroys the view with id
func (p *Plugin) CloseView(id string) bool {
	view, ok := p.View(id)
	if !ok {
		return false
	}
	if !p.workspace.DestroyItem(view) {
		view.Destroy()
		p.untrack(view)
	}
	return true
}

// SaveState persists the open views
func (p *Plugin) SaveState() error {
	views := p.Views()
	states := make([]ViewState, 0, len(views))
	for _, view := range views {
		states = append(states, view.Serialize())
	}
	if err := p.state.Save(states); err != nil {
		return err
	}
	p.logger.Debug("View state saved", zap.Int("views", len(states)))
	return nil
}

// RestoreState recreates the saved views and returns how many were opened
func (p *Plugin) RestoreState(ctx context.Context) (int, error) {
	states, err := p.state.Load()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, state := range states {
		view, err := p.DeserializeClient(ctx, state)
		if err != nil {
			return restored, err
		}
		if view != nil {
			restored++
		}
	}
	return restored, nil
}

func (p *Plugin) track(view *RemplView) {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	for _, existing := range p.views {
		if existing == view {
			p.mu.Unlock()
			return
		}
	}
	p.views = append(p.views, view)
	count := len(p.views)
	p.mu.Unlock()

	p.metrics.SetViewsActive(count)
}

func (p *Plugin) untrack(view *RemplView) {
	p.mu.Lock()
	for i, existing := range p.views {
		if existing == view {
			p.views = append(p.views[:i:i], p.views[i+1:]...)
			break
		}
	}
	count := len(p.views)
	p.mu.Unlock()

	p.metrics.SetViewsActive(count)
}
