package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/fingate/internal/metrics"
	"github.com/mbd888/fingate/internal/protocol"
)

// Handler runs the full envelope pipeline for any transport: parse,
// authenticate, authorize, rate-limit, route, respond. Both the HTTP
// one-shot endpoint and the websocket read pump feed raw bytes here.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler wraps a dispatcher with the envelope pipeline.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// HandleRaw processes one inbound frame, which may be a single envelope
// or a batch. The returned bytes are the serialized response, or nil
// when the frame was a notification (or a batch of only notifications).
func (h *Handler) HandleRaw(ctx context.Context, connID string, raw []byte) []byte {
	if !protocol.IsBatch(raw) {
		resp := h.handleOne(ctx, connID, raw)
		if resp == nil {
			return nil
		}
		return protocol.Marshal(resp)
	}

	items, perr := protocol.SplitBatch(raw)
	if perr != nil {
		return protocol.Marshal(protocol.NewErrorResponse(perr, nil))
	}

	responses := make([]*protocol.Response, 0, len(items))
	for _, item := range items {
		if resp := h.handleOne(ctx, connID, item); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}
	return protocol.Marshal(responses)
}

func (h *Handler) handleOne(ctx context.Context, connID string, raw []byte) *protocol.Response {
	req, perr := protocol.Parse(raw)
	if perr != nil {
		return protocol.NewErrorResponse(perr, nil)
	}

	start := time.Now()
	result, perr := h.process(ctx, connID, req)

	namespace, _, _ := strings.Cut(req.Method, ".")
	metrics.DispatchDuration.WithLabelValues(namespace).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if perr != nil {
		outcome = strconv.Itoa(perr.Code)
	}
	metrics.EnvelopesTotal.WithLabelValues(req.Method, outcome).Inc()

	// Notifications never produce a response, success or failure.
	if req.IsNotification() {
		return nil
	}
	if perr != nil {
		return protocol.NewErrorResponse(perr, req.ID)
	}
	return protocol.NewResponse(result, req.ID)
}

func (h *Handler) process(ctx context.Context, connID string, req *protocol.Request) (any, *protocol.Error) {
	gate := h.dispatcher.gate

	id, perr := gate.Authenticate(req, connID)
	if perr != nil {
		return nil, perr
	}
	if perr := gate.Authorize(ctx, id, req.Method, req.Params); perr != nil {
		return nil, perr
	}
	if perr := gate.RateLimit(id); perr != nil {
		return nil, perr
	}
	if req.SessionID != "" {
		gate.TouchSession(req.SessionID)
	}

	return h.dispatcher.Route(ctx, id, req.Method, req.Params)
}
