package editor

import "sync"

const defaultPanelTitle = "untitled panel"

// Panel is the pane item base: a title plus did-change-title and
// did-destroy events. Items embed it.
type Panel struct {
	mu    sync.RWMutex
	title string

	titleChanged emitter[string]
	destroyed    emitter[*Panel]
	destroyOnce  sync.Once
}

// NewPanel creates a panel titled "untitled panel"
func NewPanel() *Panel {
	return &Panel{title: defaultPanelTitle}
}

// Title returns the panel title
func (p *Panel) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.title
}

// SetTitle changes the title and announces it
func (p *Panel) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
	p.UpdateTitle()
}

// UpdateTitle announces the current title to did-change-title handlers
func (p *Panel) UpdateTitle() {
	p.titleChanged.emit(p.Title())
}

// OnDidChangeTitle subscribes to title changes
func (p *Panel) OnDidChangeTitle(fn func(title string)) Disposable {
	return p.titleChanged.on(fn)
}

// OnDidDestroy subscribes to destruction
func (p *Panel) OnDidDestroy(fn func(*Panel)) Disposable {
	return p.destroyed.on(fn)
}

// Destroy emits did-destroy once and drops every handler
func (p *Panel) Destroy() {
	p.destroyOnce.Do(func() {
		p.destroyed.emit(p)
		p.destroyed.dispose()
		p.titleChanged.dispose()
	})
}
