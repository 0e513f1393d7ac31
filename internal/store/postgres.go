package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mbd888/fingate/internal/pagination"
)

// PostgresStore is a Repository backed by PostgreSQL. Schema lives in
// the migrations directory and is applied by cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed repository.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, user_id, bank_name, account_type, account_number, balance, currency, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.BankName, &a.AccountType,
		&a.AccountNumber, &a.Balance, &a.Currency, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) AccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (s *PostgresStore) AccountByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SearchAccounts(ctx context.Context, query string) ([]*Account, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(bank_name) LIKE $1 OR LOWER(account_type) LIKE $1
		ORDER BY id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]*Account, error) {
	var result []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

const txnColumns = `t.id, t.account_id, t.amount, t.merchant, t.category, t.date, t.description, t.transaction_type, t.flagged`

func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*Transaction, error) {
	query := `
		SELECT ` + txnColumns + `
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
	`
	args := []any{userID}
	if after != nil {
		query += ` AND (t.date, t.id) < ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += ` ORDER BY t.date DESC, t.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *PostgresStore) SearchTransactions(ctx context.Context, userID string, filter TxnFilter) ([]*Transaction, error) {
	query := `
		SELECT ` + txnColumns + `
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
	`
	args := []any{userID}
	next := func() int { return len(args) + 1 }
	if filter.Category != "" {
		query += fmt.Sprintf(` AND t.category = $%d`, next())
		args = append(args, filter.Category)
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(` AND ABS(t.amount) >= $%d`, next())
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query += fmt.Sprintf(` AND ABS(t.amount) <= $%d`, next())
		args = append(args, *filter.MaxAmount)
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(` AND t.date >= $%d`, next())
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(` AND t.date <= $%d`, next())
		args = append(args, *filter.DateTo)
	}
	query += ` ORDER BY t.date DESC, t.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		var t Transaction
		var desc sql.NullString
		err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Merchant,
			&t.Category, &t.Date, &desc, &t.Type, &t.Flagged)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Description = desc.String
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (s *PostgresStore) InvestmentsByUser(ctx context.Context, userID string) ([]*Investment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, invested_amount, current_value, returns_percentage, start_date
		FROM investments
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var result []*Investment
	for rows.Next() {
		var i Investment
		err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Type,
			&i.InvestedAmount, &i.CurrentValue, &i.ReturnsPercent, &i.StartDate)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		result = append(result, &i)
	}
	return result, rows.Err()
}

func (s *PostgresStore) GoalsByUser(ctx context.Context, userID string) ([]*Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount, target_date, priority, status, progress_percentage
		FROM goals
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var result []*Goal
	for rows.Next() {
		var g Goal
		err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount,
			&g.CurrentAmount, &g.TargetDate, &g.Priority, &g.Status, &g.ProgressPercent)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		result = append(result, &g)
	}
	return result, rows.Err()
}
