package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Config holds the configuration for connecting to a FinGate instance.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	Token  string // Bearer token from auth.login (JWT)
	APIKey string // API key credential (alternative to Token)
	UserID string // Default user the tools act on behalf of
}

// GatewayClient speaks the FinGate envelope protocol over the one-shot
// HTTP endpoint.
type GatewayClient struct {
	cfg        Config
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewGatewayClient creates a new client for a FinGate instance.
func NewGatewayClient(cfg Config) *GatewayClient {
	return &GatewayClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Version       string `json:"jsonrpc"`
	Method        string `json:"method"`
	Params        any    `json:"params,omitempty"`
	ID            int64  `json:"id"`
	Authorization string `json:"authorization,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
}

type envelopeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	} `json:"error"`
}

// Call sends one request envelope and returns the result payload.
func (c *GatewayClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	env := envelope{
		Version: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	if c.cfg.Token != "" {
		env.Authorization = "Bearer " + c.cfg.Token
	} else if c.cfg.APIKey != "" {
		env.APIKey = c.cfg.APIKey
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/mcp/request", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway HTTP error (%d): %s", resp.StatusCode, string(body))
	}

	var envResp envelopeResponse
	if err := json.Unmarshal(body, &envResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if envResp.Error != nil {
		return nil, fmt.Errorf("gateway error (%d): %s", envResp.Error.Code, envResp.Error.Message)
	}

	return envResp.Result, nil
}

// Resource calls a resources.<type>.<action> method.
func (c *GatewayClient) Resource(ctx context.Context, resourceType, action string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	if c.cfg.UserID != "" {
		if _, ok := params["user_id"]; !ok {
			params["user_id"] = c.cfg.UserID
		}
	}
	return c.Call(ctx, "resources."+resourceType+"."+action, params)
}

// Tool calls tools.execute with the given tool name and parameters.
func (c *GatewayClient) Tool(ctx context.Context, name string, params map[string]any) (json.RawMessage, error) {
	return c.Call(ctx, "tools.execute", map[string]any{
		"tool":   name,
		"params": params,
	})
}
