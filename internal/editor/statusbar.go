package editor

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// StatusBar is the rempl status bar tile. Content comes from remote
// environments, so it is sanitized before it is stored.
type StatusBar struct {
	mu      sync.RWMutex
	content string
	policy  *bluemonday.Policy
	changed emitter[string]
}

// NewStatusBar creates an empty status bar
func NewStatusBar() *StatusBar {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class", "title").Globally()
	return &StatusBar{policy: policy}
}

// SetContent replaces the tile's HTML
func (s *StatusBar) SetContent(html string) {
	clean := s.policy.Sanitize(html)

	s.mu.Lock()
	s.content = clean
	s.mu.Unlock()

	s.changed.emit(clean)
}

// Content returns the sanitized HTML
func (s *StatusBar) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// OnDidChange subscribes to content changes
func (s *StatusBar) OnDidChange(fn func(html string)) Disposable {
	return s.changed.on(fn)
}
