// Package realtime is the websocket transport: long-lived duplex
// connections that carry request envelopes upstream and receive
// responses, heartbeats, and broadcast notifications downstream.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbd888/fingate/internal/conns"
	"github.com/mbd888/fingate/internal/dispatch"
	"github.com/mbd888/fingate/internal/idgen"
	"github.com/mbd888/fingate/internal/security"
)

// MaxClients is the maximum number of concurrent websocket connections.
const MaxClients = 10000

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

// normalCloseCodes are close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Gateway upgrades HTTP requests to websocket connections and pumps
// envelopes between the transport and the dispatch pipeline. Each
// connection registers as a duplex entry so broadcasts reach it.
type Gateway struct {
	handler  *dispatch.Handler
	registry *conns.Registry
	limiter  *security.Limiter
	logger   *slog.Logger

	mu         sync.Mutex
	closed     bool
	maxClients int
}

// NewGateway creates a websocket gateway.
func NewGateway(handler *dispatch.Handler, registry *conns.Registry, limiter *security.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		handler:    handler,
		registry:   registry,
		limiter:    limiter,
		logger:     logger,
		maxClients: MaxClients,
	}
}

// Shutdown rejects further upgrades. Existing connections drain when
// the HTTP server closes their underlying sockets.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	if g.registry.Count() >= g.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:      idgen.WithPrefix("conn_"),
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	g.registry.Register(c.id, conns.KindDuplex, c, r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// client is one websocket connection. Its Send method makes it the
// registry's push target for broadcasts.
type client struct {
	id      string
	gateway *Gateway
	conn    *websocket.Conn

	mu         sync.Mutex
	sendClosed bool
	send       chan []byte
}

var errSendBufferFull = errors.New("send buffer full")

// Send enqueues a payload for the write pump. A full buffer counts as a
// dead connection so the registry prunes it rather than block a
// broadcast on a slow consumer.
func (c *client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// readPump feeds inbound frames through the dispatch pipeline until the
// connection drops, then tears down registry and limiter state.
func (c *client) readPump() {
	g := c.gateway
	defer func() {
		g.registry.Unregister(c.id)
		g.limiter.Forget("conn:" + c.id)
		c.closeSend()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				g.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}

		response := g.handler.HandleRaw(context.Background(), c.id, message)
		if response == nil {
			continue // notification
		}
		if err := c.Send(response); err != nil {
			g.logger.Warn("websocket response dropped", "conn_id", c.id, "error", err)
			return
		}
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with protocol pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.gateway.logger.Warn("websocket write error", "conn_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.gateway.logger.Debug("websocket ping failed", "conn_id", c.id, "error", err)
				return
			}
		}
	}
}
