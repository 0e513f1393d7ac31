// Package protocol implements the FinGate wire envelope: a JSON-RPC 2.0
// style message format carrying requests, notifications, responses, and
// structured errors between clients and the gateway.
//
// The envelope contract:
//   - "jsonrpc" must equal Version
//   - "method" must be a string
//   - "params", when present, must be an object or array
//   - requests carry an "id"; notifications omit it and never produce
//     a response
//
// Credentials (bearer token, session id, API key) ride as optional
// top-level fields alongside the envelope, not inside params.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Version is the protocol version every envelope must declare.
const Version = "2.0"

// Request is an inbound envelope: a request (with ID) or a notification
// (without). Params are kept raw; providers decode their own shapes.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`

	// Credential fields. Authorization holds "Bearer <jwt>".
	Authorization string `json:"authorization,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
}

// IsNotification reports whether the envelope carries no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outbound envelope: exactly one of Result or Error is set.
type Response struct {
	Version string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Notification is a server-initiated envelope with no id. Clients must
// not reply to it.
type Notification struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewResponse builds a success response echoing the request id verbatim.
func NewResponse(result any, id json.RawMessage) *Response {
	return &Response{Version: Version, Result: result, ID: id}
}

// NewErrorResponse builds an error response. id may be nil when the
// request id could not be recovered (e.g. a parse failure).
func NewErrorResponse(err *Error, id json.RawMessage) *Response {
	return &Response{Version: Version, Error: err, ID: id}
}

// NewNotification builds a server push envelope.
func NewNotification(method string, params any) *Notification {
	return &Notification{Version: Version, Method: method, Params: params}
}

// Marshal serializes any envelope for transmission.
func Marshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

// Parse validates a single raw envelope. Malformed JSON yields a
// ParseError; well-formed JSON that violates the envelope contract
// yields InvalidRequest.
func Parse(raw []byte) (*Request, *Error) {
	if !json.Valid(raw) {
		return nil, NewError(CodeParseError)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, Errorf(CodeInvalidRequest, "Invalid request format")
	}

	if err := validate(&req); err != nil {
		return nil, err
	}

	// A JSON null id is the same as no id.
	if isJSONNull(req.ID) {
		req.ID = nil
	}

	return &req, nil
}

func validate(req *Request) *Error {
	if req.Version != Version {
		return Errorf(CodeInvalidRequest, "Unsupported protocol version %q", req.Version)
	}
	if req.Method == "" {
		return Errorf(CodeInvalidRequest, "Missing method")
	}
	if len(req.Params) > 0 && !isJSONNull(req.Params) {
		switch firstByte(req.Params) {
		case '{', '[':
		default:
			return Errorf(CodeInvalidRequest, "Params must be an object or array")
		}
	}
	return nil
}

// IsBatch reports whether raw is a JSON array of envelopes.
func IsBatch(raw []byte) bool {
	return firstByte(raw) == '['
}

// SplitBatch splits a batch into its raw elements. An empty batch is an
// InvalidRequest per JSON-RPC.
func SplitBatch(raw []byte) ([]json.RawMessage, *Error) {
	if !json.Valid(raw) {
		return nil, NewError(CodeParseError)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, Errorf(CodeInvalidRequest, "Invalid batch")
	}
	if len(items) == 0 {
		return nil, Errorf(CodeInvalidRequest, "Empty batch")
	}
	return items, nil
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
