package resources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mbd888/fingate/internal/pagination"
	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/store"
)

const (
	defaultTxnLimit = 100
	maxTxnLimit     = 500
)

func (c *Catalog) handleTransactions(ctx context.Context, userID, action string, params json.RawMessage) (any, *protocol.Error) {
	switch action {
	case "list":
		return c.listTransactions(ctx, userID, params)
	case "search":
		return c.searchTransactions(ctx, userID, params)
	case "aggregate":
		return c.aggregateTransactions(ctx, userID, params)
	default:
		return nil, unknownAction(action)
	}
}

func (c *Catalog) listTransactions(ctx context.Context, userID string, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		Limit  int    `json:"limit"`
		Cursor string `json:"cursor"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultTxnLimit
	}
	if limit > maxTxnLimit {
		limit = maxTxnLimit
	}

	after, err := pagination.Decode(p.Cursor)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid cursor")
	}

	// Fetch one extra to detect another page.
	txns, err := c.repo.TransactionsByUser(ctx, userID, after, limit+1)
	if err != nil {
		return nil, c.internalError("transactions.list", err)
	}

	page, next, hasMore := pagination.ComputePage(txns, limit, func(t *store.Transaction) (time.Time, string) {
		return t.Date, t.ID
	})

	return map[string]any{
		"transactions": page,
		"count":        len(page),
		"next_cursor":  next,
		"has_more":     hasMore,
	}, nil
}

func (c *Catalog) searchTransactions(ctx context.Context, userID string, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		Filters struct {
			Category  string   `json:"category"`
			MinAmount *float64 `json:"min_amount"`
			MaxAmount *float64 `json:"max_amount"`
			DateFrom  string   `json:"date_from"`
			DateTo    string   `json:"date_to"`
		} `json:"filters"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}

	filter := store.TxnFilter{
		Category:  p.Filters.Category,
		MinAmount: p.Filters.MinAmount,
		MaxAmount: p.Filters.MaxAmount,
	}
	if p.Filters.DateFrom != "" {
		t, err := parseDate(p.Filters.DateFrom)
		if err != nil {
			return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid date_from")
		}
		filter.DateFrom = &t
	}
	if p.Filters.DateTo != "" {
		t, err := parseDate(p.Filters.DateTo)
		if err != nil {
			return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid date_to")
		}
		filter.DateTo = &t
	}

	results, err := c.repo.SearchTransactions(ctx, userID, filter)
	if err != nil {
		return nil, c.internalError("transactions.search", err)
	}
	return map[string]any{
		"results": results,
		"count":   len(results),
	}, nil
}

func (c *Catalog) aggregateTransactions(ctx context.Context, userID string, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		Period string `json:"period"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}

	var span time.Duration
	var days float64
	switch p.Period {
	case "", "month":
		p.Period, span, days = "month", 30*24*time.Hour, 30
	case "week":
		span, days = 7*24*time.Hour, 7
	case "day":
		span, days = 24*time.Hour, 1
	default:
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "period must be month, week, or day")
	}

	from := time.Now().Add(-span)
	recent, err := c.repo.SearchTransactions(ctx, userID, store.TxnFilter{DateFrom: &from})
	if err != nil {
		return nil, c.internalError("transactions.aggregate", err)
	}

	type bucket struct {
		Count int     `json:"count"`
		Total float64 `json:"total"`
	}
	byCategory := make(map[string]*bucket)
	var income, expense float64
	for _, t := range recent {
		b := byCategory[t.Category]
		if b == nil {
			b = &bucket{}
			byCategory[t.Category] = b
		}
		b.Count++
		if t.Amount >= 0 {
			b.Total += t.Amount
			income += t.Amount
		} else {
			b.Total -= t.Amount
			expense -= t.Amount
		}
	}

	return map[string]any{
		"period":            p.Period,
		"total_income":      income,
		"total_expense":     expense,
		"net_flow":          income - expense,
		"by_category":       byCategory,
		"transaction_count": len(recent),
		"daily_average":     expense / days,
	}, nil
}

// parseDate accepts RFC 3339 or bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
