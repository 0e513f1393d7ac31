// Package events is the broadcast hub: fixed-interval heartbeats and
// ad hoc event notifications (fraud alerts) pushed to every registered
// connection. Dead connections are pruned as a side effect of each
// broadcast.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/fingate/internal/conns"
	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/risk"
)

// DefaultHeartbeatInterval matches HEARTBEAT_INTERVAL_SECONDS default.
const DefaultHeartbeatInterval = 30 * time.Second

// Hub publishes notifications through the connection registry. It runs
// on its own goroutine; slow consumers or stalled tool calls can never
// hold up the heartbeat.
type Hub struct {
	registry *conns.Registry
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewHub creates a broadcast hub over the registry.
func NewHub(registry *conns.Registry, interval time.Duration, logger *slog.Logger) *Hub {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Hub{
		registry: registry,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run emits heartbeats until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("broadcast hub started", "heartbeat_interval", h.interval)
	for {
		select {
		case <-ticker.C:
			h.heartbeat()
		case <-ctx.Done():
			h.logger.Info("broadcast hub stopped")
			return
		}
	}
}

func (h *Hub) heartbeat() {
	h.publish("heartbeat", map[string]any{
		"timestamp":     h.now().Format(time.RFC3339),
		"server_health": "healthy",
	})
}

// Publish broadcasts an update notification for a resource to all
// connections.
func (h *Hub) Publish(eventType string, payload any) {
	h.publish("update", map[string]any{
		"resource":  eventType,
		"data":      payload,
		"timestamp": h.now().Format(time.RFC3339),
	})
}

// PublishFraudAlert broadcasts a blocked transaction to all clients.
func (h *Hub) PublishFraudAlert(assessment *risk.Assessment) {
	h.Publish("fraud_alert", map[string]any{
		"transaction_id": assessment.TransactionID,
		"user_id":        assessment.UserID,
		"fraud_score":    assessment.Score,
		"severity":       assessment.Severity,
		"action":         string(assessment.Action),
		"risk_factors":   assessment.Factors,
		"message":        "Suspicious transaction detected and blocked",
	})
	h.logger.Warn("fraud alert broadcast",
		"transaction_id", assessment.TransactionID,
		"score", assessment.Score)
}

func (h *Hub) publish(method string, params map[string]any) {
	payload := protocol.Marshal(protocol.NewNotification(method, params))

	delivered, pruned := h.registry.Broadcast(payload)
	if len(pruned) > 0 {
		h.logger.Info("pruned dead connections during broadcast",
			"method", method, "pruned", len(pruned))
	}
	h.logger.Debug("broadcast complete",
		"method", method, "delivered", len(delivered), "pruned", len(pruned))
}
