package resources

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fingate/internal/protocol"
	"github.com/mbd888/fingate/internal/store"
)

func testCatalog() *Catalog {
	s := store.NewMemoryStore()
	s.SeedDemoData()
	return NewCatalog(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCatalogList(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, []string{"accounts", "transactions", "investments", "goals"}, c.List())
}

func TestUnknownResource(t *testing.T) {
	c := testCatalog()
	_, perr := c.Handle(context.Background(), "USR001", "epf", "list", nil)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeResourceNotFound, perr.Code)
}

func TestUnknownAction(t *testing.T) {
	c := testCatalog()
	_, perr := c.Handle(context.Background(), "USR001", "accounts", "delete", nil)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestAccountsList(t *testing.T) {
	c := testCatalog()
	result, perr := c.Handle(context.Background(), "USR001", "accounts", "list", nil)
	require.Nil(t, perr)

	m := result.(map[string]any)
	assert.Equal(t, 2, m["count"])
	assert.Equal(t, 400000.0, m["total_balance"])
	assert.Equal(t, "INR", m["currency"])
}

func TestAccountsGet(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	result, perr := c.Handle(ctx, "USR001", "accounts", "get", json.RawMessage(`{"account_id":"ACC001"}`))
	require.Nil(t, perr)
	m := result.(map[string]any)
	account := m["account"].(*store.Account)
	assert.Equal(t, "HDFC Bank", account.BankName)

	_, perr = c.Handle(ctx, "USR001", "accounts", "get", json.RawMessage(`{"account_id":"ACC999"}`))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeResourceNotFound, perr.Code)

	_, perr = c.Handle(ctx, "USR001", "accounts", "get", nil)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestAccountsSearchAndAggregate(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	result, perr := c.Handle(ctx, "USR001", "accounts", "search", json.RawMessage(`{"query":"icici"}`))
	require.Nil(t, perr)
	assert.Equal(t, 1, result.(map[string]any)["count"])

	result, perr = c.Handle(ctx, "USR001", "accounts", "aggregate", nil)
	require.Nil(t, perr)
	m := result.(map[string]any)
	byBank := m["by_bank"].(map[string]float64)
	assert.Equal(t, 250000.0, byBank["HDFC Bank"])
	assert.Equal(t, 150000.0, byBank["ICICI Bank"])
}

func TestTransactionsListPaginated(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	result, perr := c.Handle(ctx, "USR001", "transactions", "list", json.RawMessage(`{"limit":2}`))
	require.Nil(t, perr)
	m := result.(map[string]any)
	assert.Equal(t, 2, m["count"])
	assert.Equal(t, true, m["has_more"])
	cursor := m["next_cursor"].(string)
	require.NotEmpty(t, cursor)

	params, _ := json.Marshal(map[string]any{"limit": 10, "cursor": cursor})
	result, perr = c.Handle(ctx, "USR001", "transactions", "list", params)
	require.Nil(t, perr)
	m = result.(map[string]any)
	assert.Equal(t, 3, m["count"])
	assert.Equal(t, false, m["has_more"])

	_, perr = c.Handle(ctx, "USR001", "transactions", "list", json.RawMessage(`{"cursor":"!!!"}`))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestTransactionsSearch(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	result, perr := c.Handle(ctx, "USR001", "transactions", "search",
		json.RawMessage(`{"filters":{"category":"FOOD"}}`))
	require.Nil(t, perr)
	assert.Equal(t, 1, result.(map[string]any)["count"])

	result, perr = c.Handle(ctx, "USR001", "transactions", "search",
		json.RawMessage(`{"filters":{"min_amount":30000}}`))
	require.Nil(t, perr)
	assert.Equal(t, 2, result.(map[string]any)["count"])

	_, perr = c.Handle(ctx, "USR001", "transactions", "search",
		json.RawMessage(`{"filters":{"date_from":"not-a-date"}}`))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestTransactionsAggregateBadPeriod(t *testing.T) {
	c := testCatalog()
	_, perr := c.Handle(context.Background(), "USR001", "transactions", "aggregate",
		json.RawMessage(`{"period":"year"}`))
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeInvalidParams, perr.Code)
}

func TestInvestmentsList(t *testing.T) {
	c := testCatalog()
	result, perr := c.Handle(context.Background(), "USR001", "investments", "list", nil)
	require.Nil(t, perr)

	m := result.(map[string]any)
	summary := m["summary"].(map[string]any)
	assert.Equal(t, 150000.0, summary["total_invested"])
	assert.Equal(t, 183000.0, summary["current_value"])
	assert.Equal(t, 33000.0, summary["total_returns"])
	assert.Equal(t, 22.0, summary["returns_percentage"])
}

func TestGoalsList(t *testing.T) {
	c := testCatalog()
	result, perr := c.Handle(context.Background(), "USR001", "goals", "list", nil)
	require.Nil(t, perr)

	m := result.(map[string]any)
	summary := m["summary"].(map[string]any)
	assert.Equal(t, 2, summary["total_goals"])
	assert.Equal(t, 37.5, summary["average_progress"])
	assert.Equal(t, 1, summary["on_track"])
	assert.Equal(t, 1, summary["behind"])
}

func TestDevModeFallsBackToParamsUser(t *testing.T) {
	c := testCatalog()
	result, perr := c.Handle(context.Background(), "", "accounts", "list",
		json.RawMessage(`{"user_id":"USR001"}`))
	require.Nil(t, perr)
	assert.Equal(t, 2, result.(map[string]any)["count"])

	// No user anywhere: demo user.
	result, perr = c.Handle(context.Background(), "", "accounts", "list", nil)
	require.Nil(t, perr)
	assert.Equal(t, 2, result.(map[string]any)["count"])
}
