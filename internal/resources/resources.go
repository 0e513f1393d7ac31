// Package resources serves the financial data catalog: accounts,
// transactions, investments, and goals, addressed as
// resources.<type>.<action> with list/get/search/aggregate actions.
package resources

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/store"
)

// defaultUserID backs dev-mode requests that carry no identity.
const defaultUserID = "USR001"

// Catalog routes resource requests to the repository.
type Catalog struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewCatalog creates a resource catalog over the given repository.
func NewCatalog(repo store.Repository, logger *slog.Logger) *Catalog {
	return &Catalog{repo: repo, logger: logger}
}

// List returns the resource type names the catalog serves.
func (c *Catalog) List() []string {
	return []string{"accounts", "transactions", "investments", "goals"}
}

// Handle executes one resource action. userID is the authenticated
// user; when empty (dev mode) the params' user_id or the demo user is
// used instead.
func (c *Catalog) Handle(ctx context.Context, userID, resourceType, action string, params json.RawMessage) (any, *protocol.Error) {
	var common struct {
		UserID string `json:"user_id"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &common)
	}
	if userID == "" {
		userID = common.UserID
	}
	if userID == "" {
		userID = defaultUserID
	}

	switch resourceType {
	case "accounts":
		return c.handleAccounts(ctx, userID, action, params)
	case "transactions":
		return c.handleTransactions(ctx, userID, action, params)
	case "investments":
		return c.handleInvestments(ctx, userID, action, params)
	case "goals":
		return c.handleGoals(ctx, userID, action, params)
	default:
		return nil, protocol.Errorf(protocol.CodeResourceNotFound, "Unknown resource: %s", resourceType)
	}
}

// unknownAction is the shared error for actions a resource does not
// support.
func unknownAction(action string) *protocol.Error {
	return protocol.Errorf(protocol.CodeInvalidParams, "Unknown action: %s", action)
}

// internalError logs a repository failure and hides it from the wire.
func (c *Catalog) internalError(op string, err error) *protocol.Error {
	c.logger.Error("repository query failed", "op", op, "error", err)
	return protocol.NewError(protocol.CodeInternal)
}
