package resources

import (
	"context"
	"encoding/json"

	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/store"
)

func (c *Catalog) handleAccounts(ctx context.Context, userID, action string, params json.RawMessage) (any, *protocol.Error) {
	switch action {
	case "list":
		return c.listAccounts(ctx, userID)
	case "get":
		return c.getAccount(ctx, params)
	case "search":
		return c.searchAccounts(ctx, params)
	case "aggregate":
		return c.aggregateAccounts(ctx, userID)
	default:
		return nil, unknownAction(action)
	}
}

func (c *Catalog) listAccounts(ctx context.Context, userID string) (any, *protocol.Error) {
	accounts, err := c.repo.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, c.internalError("accounts.list", err)
	}

	var total float64
	for _, a := range accounts {
		total += a.Balance
	}
	currency := "INR"
	if len(accounts) > 0 {
		currency = accounts[0].Currency
	}

	return map[string]any{
		"accounts":      accounts,
		"total_balance": total,
		"count":         len(accounts),
		"currency":      currency,
	}, nil
}

func (c *Catalog) getAccount(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		AccountID string `json:"account_id"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	if p.AccountID == "" {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "account_id required")
	}

	account, err := c.repo.AccountByID(ctx, p.AccountID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, protocol.Errorf(protocol.CodeResourceNotFound, "Account not found")
		}
		return nil, c.internalError("accounts.get", err)
	}
	return map[string]any{"account": account}, nil
}

func (c *Catalog) searchAccounts(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		Query string `json:"query"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}

	results, err := c.repo.SearchAccounts(ctx, p.Query)
	if err != nil {
		return nil, c.internalError("accounts.search", err)
	}
	return map[string]any{
		"results": results,
		"count":   len(results),
	}, nil
}

func (c *Catalog) aggregateAccounts(ctx context.Context, userID string) (any, *protocol.Error) {
	accounts, err := c.repo.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, c.internalError("accounts.aggregate", err)
	}

	var total float64
	byType := make(map[string]float64)
	byBank := make(map[string]float64)
	for _, a := range accounts {
		total += a.Balance
		byType[a.AccountType] += a.Balance
		byBank[a.BankName] += a.Balance
	}

	return map[string]any{
		"total_balance": total,
		"by_type":       byType,
		"by_bank":       byBank,
	}, nil
}
