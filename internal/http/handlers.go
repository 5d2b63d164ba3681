package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/editor"
	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/remote"
	"github.com/GriffinCanCode/remplhost/internal/settings"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/GriffinCanCode/remplhost/internal/utils"
	"github.com/gin-gonic/gin"
)

// Prober checks that a rempl server URL answers
type Prober interface {
	Probe(ctx context.Context, url string) (*remote.ProbeResult, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	plugin    *editor.Plugin
	transport *transport.Transport
	settings  *settings.Store
	prober    Prober
	metrics   *monitoring.Metrics
	version   string
	started   time.Time
	conns     func() int
}

// NewHandlers creates a new handler set. conns reports open websocket
// endpoints and may be nil.
func NewHandlers(
	plugin *editor.Plugin,
	tr *transport.Transport,
	store *settings.Store,
	prober Prober,
	metrics *monitoring.Metrics,
	version string,
	conns func() int,
) *Handlers {
	if conns == nil {
		conns = func() int { return 0 }
	}
	return &Handlers{
		plugin:    plugin,
		transport: tr,
		settings:  store,
		prober:    prober,
		metrics:   metrics,
		version:   version,
		started:   time.Now(),
		conns:     conns,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "rempl host",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"transport": gin.H{
			"name":       h.transport.Name(),
			"connect_to": h.transport.ConnectTo(),
			"channel":    h.transport.InputChannelID(),
			"bindings":   h.transport.Bindings(),
			"debug":      h.transport.Debug(),
		},
		"views":          len(h.plugin.Views()),
		"ws_connections": h.conns(),
		"active":         h.plugin.Active(),
		"metrics":        h.metrics.Snapshot(),
		"uptime":         time.Since(h.started).Round(time.Second).String(),
	})
}

// ListViews lists the open rempl views
func (h *Handlers) ListViews(c *gin.Context) {
	views := h.plugin.Views()
	infos := make([]editor.ViewInfo, 0, len(views))
	for _, view := range views {
		infos = append(infos, view.Info())
	}
	c.JSON(http.StatusOK, gin.H{"views": infos})
}

// GetView returns one view
func (h *Handlers) GetView(c *gin.Context) {
	viewID := c.Param("id")
	if err := utils.ValidateID(viewID, "view_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, ok := h.plugin.View(viewID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "view not found"})
		return
	}
	c.JSON(http.StatusOK, view.Info())
}

// OpenView opens a view for a rempl client URL. Without a URL the
// configured default server is used.
func (h *Handlers) OpenView(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.URL == "" {
		req.URL = h.settings.String(settings.KeyServerURL)
	}

	view, err := h.plugin.AddClient(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, editor.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, editor.ErrNotActive):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, view.Info())
}

// CloseView destroys a view
func (h *Handlers) CloseView(c *gin.Context) {
	viewID := c.Param("id")
	if err := utils.ValidateID(viewID, "view_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.plugin.CloseView(viewID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "view not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDebug toggles transport traffic logging
func (h *Handlers) SetDebug(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	if err := h.settings.Set(settings.KeyDebug, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"debug": h.transport.Debug()})
}

// Broadcast sends a payload to every connected environment
func (h *Handlers) Broadcast(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(utils.BroadcastLimits.MaxSize)+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := utils.DecodeJSON(body, utils.BroadcastLimits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sent": h.plugin.Broadcast(payload)})
}

// Probe checks that a rempl server URL is reachable
func (h *Handlers) Probe(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.URL == "" {
		req.URL = h.settings.String(settings.KeyServerURL)
	}

	url, err := editor.ValidateServerURL(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.prober.Probe(c.Request.Context(), url)
	switch {
	case errors.Is(err, remote.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "url": url})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "url": url})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListSettings lists host settings
func (h *Handlers) ListSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": h.settings.List(c.Query("category"))})
}
