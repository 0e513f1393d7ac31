// Package conns tracks live client connections for the gateway.
//
// Two transport kinds share one registry: long-lived duplex channels
// (websocket) that can receive pushes, and one-shot call/response
// connections (HTTP) that exist only for the lifetime of a single
// request. Broadcast delivery is partial by design: a failed send
// prunes that connection and the rest still get the message.
package conns

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/fingate/internal/metrics"
)

// Kind is the transport flavor of a connection.
type Kind string

const (
	// KindDuplex is a long-lived push+pull channel.
	KindDuplex Kind = "duplex"
	// KindOneShot is a transient request/response call.
	KindOneShot Kind = "oneshot"
)

var (
	// ErrNotRegistered is returned when sending to an unknown connection id.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrNotPushable is returned when sending to a connection that has no
	// push channel (one-shot transports).
	ErrNotPushable = errors.New("connection cannot receive pushes")
)

// Sender delivers one serialized envelope to a connection's transport.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(payload []byte) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(payload []byte) error

func (f SenderFunc) Send(payload []byte) error { return f(payload) }

// Connection is one registered client transport.
type Connection struct {
	ID           string
	Kind         Kind
	RegisteredAt time.Time
	RemoteAddr   string

	mu        sync.Mutex
	sessionID string
	sender    Sender
}

// SessionID returns the session bound to this connection, if any.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Registry is the mutex-guarded table of live connections.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Register adds a connection. Duplex connections must pass a sender;
// one-shot connections may pass nil and are skipped by Broadcast.
func (r *Registry) Register(id string, kind Kind, sender Sender, remoteAddr string) *Connection {
	conn := &Connection{
		ID:           id,
		Kind:         kind,
		RegisteredAt: time.Now(),
		RemoteAddr:   remoteAddr,
		sender:       sender,
	}

	r.mu.Lock()
	r.conns[id] = conn
	n := r.countByKindLocked(kind)
	r.mu.Unlock()

	metrics.ActiveConnections.WithLabelValues(string(kind)).Set(float64(n))
	r.logger.Info("connection registered", "conn_id", shortID(id), "kind", kind)
	return conn
}

// Unregister removes a connection. Returns false if it was not present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	var n int
	if ok {
		n = r.countByKindLocked(conn.Kind)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	metrics.ActiveConnections.WithLabelValues(string(conn.Kind)).Set(float64(n))
	r.logger.Info("connection closed", "conn_id", shortID(id), "kind", conn.Kind)
	return true
}

// Get looks up a connection by id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// BindSession attaches an authenticated session to a connection so that
// later requests on the same transport inherit it.
func (r *Registry) BindSession(connID, sessionID string) {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	conn.mu.Lock()
	conn.sessionID = sessionID
	conn.mu.Unlock()
}

// SendTo delivers a payload to one connection. A transport failure
// prunes the connection from the registry and returns the error.
func (r *Registry) SendTo(id string, payload []byte) error {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return ErrNotRegistered
	}
	if conn.sender == nil {
		return ErrNotPushable
	}

	if err := conn.sender.Send(payload); err != nil {
		r.logger.Warn("send failed, pruning connection", "conn_id", shortID(id), "error", err)
		r.Unregister(id)
		return err
	}
	return nil
}

// Broadcast delivers a payload to every push-capable connection.
// Failures are isolated: a dead connection is pruned and delivery
// continues. Never panics or returns an error to the caller.
func (r *Registry) Broadcast(payload []byte) (delivered, pruned []string) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn.sender != nil {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.sender.Send(payload); err != nil {
			r.logger.Warn("broadcast send failed, pruning connection",
				"conn_id", shortID(conn.ID), "error", err)
			pruned = append(pruned, conn.ID)
			continue
		}
		delivered = append(delivered, conn.ID)
	}

	if len(pruned) > 0 {
		r.mu.Lock()
		for _, id := range pruned {
			delete(r.conns, id)
		}
		n := r.countByKindLocked(KindDuplex)
		r.mu.Unlock()
		metrics.ActiveConnections.WithLabelValues(string(KindDuplex)).Set(float64(n))
	}

	metrics.BroadcastsTotal.WithLabelValues("delivered").Add(float64(len(delivered)))
	metrics.BroadcastsTotal.WithLabelValues("pruned").Add(float64(len(pruned)))
	return delivered, pruned
}

func (r *Registry) countByKindLocked(kind Kind) int {
	n := 0
	for _, conn := range r.conns {
		if conn.Kind == kind {
			n++
		}
	}
	return n
}

// shortID truncates connection ids for log readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
