// Package store holds the financial data repository: accounts,
// transactions, investments, and goals served by the resource catalog.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/fingate/internal/pagination"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Account is a bank account. Wire field names are snake_case to match
// the gateway's protocol surface.
type Account struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BankName      string    `json:"bank_name"`
	AccountType   string    `json:"account_type"` // SAVINGS, CURRENT, CREDIT
	AccountNumber string    `json:"account_number"`
	Balance       float64   `json:"balance"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction is a single ledger entry. Debits carry negative amounts.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      float64   `json:"amount"`
	Merchant    string    `json:"merchant"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"transaction_type"` // DEBIT, CREDIT
	Flagged     bool      `json:"flagged,omitempty"`
}

// Investment is a portfolio holding.
type Investment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"` // MUTUAL_FUND, STOCK, FD
	InvestedAmount float64   `json:"invested_amount"`
	CurrentValue   float64   `json:"current_value"`
	ReturnsPercent float64   `json:"returns_percentage"`
	StartDate      time.Time `json:"start_date"`
}

// Goal is a savings goal with progress tracking.
type Goal struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	TargetAmount    float64   `json:"target_amount"`
	CurrentAmount   float64   `json:"current_amount"`
	TargetDate      time.Time `json:"target_date"`
	Priority        string    `json:"priority"` // HIGH, MEDIUM, LOW
	Status          string    `json:"status"`   // ON_TRACK, BEHIND, ACHIEVED
	ProgressPercent float64   `json:"progress_percentage"`
}

// TxnFilter narrows a transaction search. Zero-valued fields are not
// applied. Amount bounds compare against absolute values.
type TxnFilter struct {
	Category  string
	MinAmount *float64
	MaxAmount *float64
	DateFrom  *time.Time
	DateTo    *time.Time
}

// Repository is the read surface the resource catalog queries.
// Transactions are always returned newest first (date desc, id desc).
type Repository interface {
	AccountsByUser(ctx context.Context, userID string) ([]*Account, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	SearchAccounts(ctx context.Context, query string) ([]*Account, error)

	// TransactionsByUser returns up to limit entries strictly after the
	// cursor position. Callers fetch limit+1 to detect another page.
	TransactionsByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*Transaction, error)
	SearchTransactions(ctx context.Context, userID string, filter TxnFilter) ([]*Transaction, error)

	InvestmentsByUser(ctx context.Context, userID string) ([]*Investment, error)
	GoalsByUser(ctx context.Context, userID string) ([]*Goal, error)
}

// matchesFilter applies a TxnFilter to one transaction. Shared by the
// memory store and tests; the Postgres store filters in SQL.
func matchesFilter(t *Transaction, f TxnFilter) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	abs := t.Amount
	if abs < 0 {
		abs = -abs
	}
	if f.MinAmount != nil && abs < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && abs > *f.MaxAmount {
		return false
	}
	if f.DateFrom != nil && t.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && t.Date.After(*f.DateTo) {
		return false
	}
	return true
}
