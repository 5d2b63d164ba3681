package editor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/remplhost/internal/remote"
)

// DefaultServerURL is the rempl server client page the dialog starts with
const DefaultServerURL = "http://localhost:8177/server/client"

var ErrInvalidURL = errors.New("invalid server URL")

// Prober checks that a server URL is reachable
type Prober interface {
	Probe(ctx context.Context, url string) (*remote.ProbeResult, error)
}

// ServerDialog is the modal that asks for a rempl server URL
type ServerDialog struct {
	defaultURL string
	prober     Prober

	mu      sync.RWMutex
	text    string
	visible bool
}

// NewServerDialog creates a hidden dialog prefilled with defaultURL
func NewServerDialog(defaultURL string, prober Prober) *ServerDialog {
	if defaultURL == "" {
		defaultURL = DefaultServerURL
	}
	return &ServerDialog{defaultURL: defaultURL, prober: prober, text: defaultURL}
}

// Show opens the dialog
func (d *ServerDialog) Show() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = true
}

// Hide closes the dialog
func (d *ServerDialog) Hide() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = false
}

// IsVisible reports whether the dialog is open
func (d *ServerDialog) IsVisible() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visible
}

// Text returns the URL input's contents
func (d *ServerDialog) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// SetText replaces the URL input's contents
func (d *ServerDialog) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

// Reset restores the default URL
func (d *ServerDialog) Reset() {
	d.SetText(d.defaultURL)
}

// DefaultURL returns the URL the dialog resets to
func (d *ServerDialog) DefaultURL() string { return d.defaultURL }

// Probe checks the entered URL against the server. Without a prober only
// the URL shape is validated.
func (d *ServerDialog) Probe(ctx context.Context) (*remote.ProbeResult, error) {
	raw, err := ValidateServerURL(d.Text())
	if err != nil {
		return nil, err
	}
	if d.prober == nil {
		return &remote.ProbeResult{URL: raw}, nil
	}
	return d.prober.Probe(ctx, raw)
}

// ValidateServerURL trims raw and checks it is an absolute http(s) URL
func ValidateServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}
