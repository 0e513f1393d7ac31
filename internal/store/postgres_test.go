package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fingate/internal/pagination"
	"github.com/mbd888/fingate/internal/testutil"
)

// These tests require a PostgreSQL instance; set POSTGRES_URL to run them.

func seedPostgres(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, bank_name, account_type, account_number, balance, currency, created_at)
		VALUES
			('ACC001', 'USR001', 'HDFC Bank', 'SAVINGS', 'XXXX1234', 125000.50, 'INR', $1),
			('ACC002', 'USR001', 'ICICI Bank', 'CURRENT', 'XXXX5678', 45000.00, 'INR', $1),
			('ACC003', 'USR002', 'SBI', 'SAVINGS', 'XXXX9012', 8000.00, 'INR', $1)
	`, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, merchant, category, date, description, transaction_type, flagged)
		VALUES
			('TXN001', 'ACC001', -450.00, 'Swiggy', 'FOOD', $1, 'Lunch order', 'DEBIT', FALSE),
			('TXN002', 'ACC001', -12000.00, 'Amazon', 'SHOPPING', $2, NULL, 'DEBIT', FALSE),
			('TXN003', 'ACC002', 85000.00, 'Acme Corp', 'SALARY', $3, 'Monthly salary', 'CREDIT', FALSE),
			('TXN004', 'ACC003', -200.00, 'Chai Point', 'FOOD', $1, NULL, 'DEBIT', FALSE)
	`, now, now.Add(-24*time.Hour), now.Add(-48*time.Hour))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO investments (id, user_id, name, type, invested_amount, current_value, returns_percentage, start_date)
		VALUES ('INV001', 'USR001', 'Nifty 50 Index Fund', 'MUTUAL_FUND', 50000, 58500, 17.0, $1)
	`, now.Add(-365*24*time.Hour))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, target_amount, current_amount, target_date, priority, status, progress_percentage)
		VALUES ('GOAL001', 'USR001', 'Emergency Fund', 300000, 150000, $1, 'HIGH', 'ON_TRACK', 50.0)
	`, now.Add(180*24*time.Hour))
	require.NoError(t, err)
}

func TestPostgresAccounts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	seedPostgres(t, db)

	s := NewPostgresStore(db)
	ctx := context.Background()

	accounts, err := s.AccountsByUser(ctx, "USR001")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "ACC001", accounts[0].ID)
	assert.InDelta(t, 125000.50, accounts[0].Balance, 0.001)

	acc, err := s.AccountByID(ctx, "ACC003")
	require.NoError(t, err)
	assert.Equal(t, "USR002", acc.UserID)

	_, err = s.AccountByID(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := s.SearchAccounts(ctx, "hdfc")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ACC001", found[0].ID)
}

func TestPostgresTransactionsPagination(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	seedPostgres(t, db)

	s := NewPostgresStore(db)
	ctx := context.Background()

	// Newest first across both USR001 accounts.
	txns, err := s.TransactionsByUser(ctx, "USR001", nil, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "TXN001", txns[0].ID)
	assert.Equal(t, "TXN002", txns[1].ID)

	// The cursor resumes strictly after the last row.
	cursor := &pagination.Cursor{CreatedAt: txns[1].Date, ID: txns[1].ID}
	rest, err := s.TransactionsByUser(ctx, "USR001", cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "TXN003", rest[0].ID)

	// NULL descriptions come back as empty strings.
	assert.Empty(t, txns[1].Description)
}

func TestPostgresTransactionSearch(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	seedPostgres(t, db)

	s := NewPostgresStore(db)
	ctx := context.Background()

	byCategory, err := s.SearchTransactions(ctx, "USR001", TxnFilter{Category: "FOOD"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "TXN001", byCategory[0].ID)

	min := 10000.0
	large, err := s.SearchTransactions(ctx, "USR001", TxnFilter{MinAmount: &min})
	require.NoError(t, err)
	require.Len(t, large, 2)
}

func TestPostgresInvestmentsAndGoals(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	seedPostgres(t, db)

	s := NewPostgresStore(db)
	ctx := context.Background()

	inv, err := s.InvestmentsByUser(ctx, "USR001")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, "MUTUAL_FUND", inv[0].Type)

	goals, err := s.GoalsByUser(ctx, "USR001")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "ON_TRACK", goals[0].Status)

	none, err := s.GoalsByUser(ctx, "USR999")
	require.NoError(t, err)
	assert.Empty(t, none)
}
