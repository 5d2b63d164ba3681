package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrClosed       = errors.New("websocket connection is closed")
	ErrBackpressure = errors.New("websocket send buffer is full")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Host receives envelopes read from a connection
type Host interface {
	Post(ev transport.MessageEvent)
}

// Conn is a remote rempl environment connected over a WebSocket. Each text
// message is one JSON envelope in either direction. It implements
// transport.Endpoint.
type Conn struct {
	id      string
	ws      *websocket.Conn
	host    Host
	limiter *rate.Limiter
	metrics *monitoring.Metrics
	logger  *zap.Logger

	send      chan []byte
	done      chan struct{}
	attached  atomic.Bool
	closeOnce sync.Once
	onClose   func(*Conn)
}

func newConn(ws *websocket.Conn, host Host, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Conn {
	id := uuid.New().String()
	c := &Conn{
		id:      id,
		ws:      ws,
		host:    host,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		metrics: metrics,
		logger:  logger.With(zap.String("conn", id)),
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
	c.attached.Store(true)
	return c
}

// ID returns the connection id
func (c *Conn) ID() string { return c.id }

// PostMessage queues env for the remote side
func (c *Conn) PostMessage(env transport.Envelope) error {
	if !c.attached.Load() {
		return ErrClosed
	}

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

// Attached reports whether the connection is still open
func (c *Conn) Attached() bool {
	return c.attached.Load()
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.attached.Store(false)
		close(c.done)
		_ = c.ws.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// readPump posts inbound envelopes to the host until the socket fails
func (c *Conn) readPump(ctx context.Context) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.metrics.RecordWSMessage("in")

		if !c.limiter.Allow() {
			c.metrics.RecordFrameDropped(monitoring.DropRateLimited)
			c.logger.Debug("Inbound message rate limited")
			continue
		}

		env, err := transport.DecodeEnvelope(data)
		if err != nil {
			c.metrics.RecordFrameDropped(monitoring.DropMalformed)
			c.logger.Debug("Dropped malformed envelope", zap.Error(err))
			continue
		}

		c.host.Post(transport.MessageEvent{Source: c, Data: env})
	}
}

// writePump drains the send queue and keeps the connection alive with pings
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
			c.metrics.RecordWSMessage("out")

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
