// Package advisor calls the generative reasoning service used for
// narrative insights. The service is treated as opaque and unreliable:
// calls are context-bounded, retried once on transient failure, guarded
// by a circuit breaker, and fall back to a deterministic local response
// so the gateway never stalls on it.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbd888/fingate/internal/circuitbreaker"
	"github.com/mbd888/fingate/internal/metrics"
	"github.com/mbd888/fingate/internal/retry"
)

const (
	breakerKey   = "advisor"
	maxAttempts  = 2
	retryBackoff = 100 * time.Millisecond
)

// Config configures the advisor client.
type Config struct {
	// URL of the reasoning service; empty disables remote calls
	// entirely (fallback only).
	URL string
	// APIKey sent as a bearer token when set.
	APIKey string
	// Timeout bounds each remote call. Defaults to 5s.
	Timeout time.Duration
}

// Client asks the reasoning service for a narrative answer.
type Client struct {
	cfg     Config
	httpc   *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// New creates an advisor client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.New(3, 30*time.Second),
		logger:  logger,
	}
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask sends a prompt to the reasoning service. On any failure (service
// down, breaker open, timeout, bad response) it returns the local
// fallback instead of an error, so callers can always render something.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	if c.cfg.URL == "" {
		return Fallback(prompt), nil
	}
	if !c.breaker.Allow(breakerKey) {
		metrics.AdvisorCallsTotal.WithLabelValues("short_circuited").Inc()
		return Fallback(prompt), nil
	}

	var answer string
	err := retry.Do(ctx, maxAttempts, retryBackoff, func() error {
		a, err := c.ask(ctx, prompt)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		metrics.AdvisorCallsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("advisor call failed, using fallback", "error", err)
		return Fallback(prompt), nil
	}

	c.breaker.RecordSuccess(breakerKey)
	metrics.AdvisorCallsTotal.WithLabelValues("ok").Inc()
	return answer, nil
}

func (c *Client) ask(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(askRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("advisor returned status %d", resp.StatusCode)
		// Client errors won't heal on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", retry.Permanent(err)
		}
		return "", err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out askResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode advisor response: %w", err)
	}
	if out.Answer == "" {
		return "", fmt.Errorf("advisor returned empty answer")
	}
	return out.Answer, nil
}

// Fallback is the deterministic local response used when the reasoning
// service is unavailable.
func Fallback(prompt string) string {
	return "Based on your recent activity, keep expenses below 80% of income, " +
		"maintain a 6-month emergency fund, and review flagged transactions promptly."
}
