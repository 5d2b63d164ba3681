package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessageSize = 1 << 20

// Config configures WebSocket endpoints
type Config struct {
	MessagesPerSecond float64 // inbound messages per connection
	Burst             int
	SendBuffer        int
	CheckOrigin       func(r *http.Request) bool
}

// DefaultConfig returns the connection defaults
func DefaultConfig() Config {
	return Config{
		MessagesPerSecond: 200,
		Burst:             400,
		SendBuffer:        256,
	}
}

// Handler upgrades HTTP requests into transport endpoints
type Handler struct {
	host         Host
	transport    *transport.Transport
	upgrader     websocket.Upgrader
	config       Config
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	onConnect    func(*Conn)
	onDisconnect func(*Conn)

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewHandler creates a WebSocket handler feeding host and cleaning up tr
func NewHandler(host Host, tr *transport.Transport, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = DefaultConfig().MessagesPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.MessagesPerSecond)
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Handler{
		host:      host,
		transport: tr,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
		config:    cfg,
		metrics:   metrics,
		logger:    logger.Named("ws"),
		conns:     make(map[*Conn]struct{}),
	}
}

// OnConnect registers fn to run for every new connection before its
// first message is read
func (h *Handler) OnConnect(fn func(*Conn)) {
	h.onConnect = fn
}

// OnDisconnect registers fn to run once a connection has closed and its
// transport binding is gone
func (h *Handler) OnDisconnect(fn func(*Conn)) {
	h.onDisconnect = fn
}

// HandleConnection handles WebSocket upgrade and serves the connection
// until it closes
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, h.host, h.config, h.metrics, h.logger)
	conn.onClose = h.release
	h.track(conn)

	h.logger.Info("Endpoint connected",
		zap.String("conn", conn.ID()),
		zap.String("remote", c.Request.RemoteAddr))

	if h.onConnect != nil {
		h.onConnect(conn)
	}

	go conn.writePump()
	conn.readPump(c.Request.Context())
}

func (h *Handler) track(conn *Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

// release forgets a closed connection and drops its transport binding
func (h *Handler) release(conn *Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.metrics.DecWSConnections()
	if h.transport != nil {
		h.transport.RemoveTarget(conn)
	}
	if h.onDisconnect != nil {
		h.onDisconnect(conn)
	}
	h.logger.Info("Endpoint disconnected", zap.String("conn", conn.ID()))
}

// Connections returns the number of open connections
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every open connection
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		conn.Close()
	}
}
