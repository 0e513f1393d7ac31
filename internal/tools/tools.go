// Package tools implements the computational tool catalog: fraud risk
// scoring, loan/tax/savings calculators, and insight generation,
// addressed as tools.execute with a tool name and parameters.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/risk"
	"github.com/mbd888/fingate/internal/traces"
)

// Tool is a named computation exposed through the gateway. userID is
// the authenticated user, empty in dev mode (tools fall back to the
// params' user_id where they need one).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, userID string, params json.RawMessage) (any, error)
}

// Info describes a tool for tools.list.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Catalog routes tool execution by name.
type Catalog struct {
	tools  map[string]Tool
	logger *slog.Logger
}

// NewCatalog creates an empty tool catalog.
func NewCatalog(logger *slog.Logger) *Catalog {
	return &Catalog{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Later registrations with the same name win.
func (c *Catalog) Register(t Tool) {
	c.tools[t.Name()] = t
}

// List describes all registered tools, sorted by name.
func (c *Catalog) List() []Info {
	result := make([]Info, 0, len(c.tools))
	for _, t := range c.tools {
		result = append(result, Info{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Execute runs one tool. Tool failures are converted to structured
// errors at this boundary; the original message rides along as
// diagnostic data.
func (c *Catalog) Execute(ctx context.Context, userID, name string, params json.RawMessage) (any, *protocol.Error) {
	t, ok := c.tools[name]
	if !ok {
		return nil, protocol.Errorf(protocol.CodeMethodNotFound, "Unknown tool: %s", name)
	}

	ctx, span := traces.StartSpan(ctx, "tools.execute", traces.ToolName(name))
	defer span.End()

	result, err := t.Execute(ctx, userID, params)
	if err != nil {
		traces.RecordError(span, err)
		c.logger.Warn("tool execution failed", "tool", name, "error", err)
		if errors.Is(err, risk.ErrInvalidTransaction) {
			return nil, protocol.NewError(protocol.CodeInvalidFinancialData).WithData(err.Error())
		}
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, protocol.Errorf(protocol.CodeToolExecutionFailed, "Tool %s failed", name).WithData(err.Error())
	}
	return result, nil
}
