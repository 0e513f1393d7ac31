package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/fingate/internal/pagination"
)

// MemoryStore is a mutex-guarded in-memory Repository. Used in demo
// mode and tests; production deployments use PostgresStore.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*Account
	transactions map[string]*Transaction
	investments  map[string]*Investment
	goals        map[string]*Goal
}

// NewMemoryStore creates an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*Account),
		transactions: make(map[string]*Transaction),
		investments:  make(map[string]*Investment),
		goals:        make(map[string]*Goal),
	}
}

// AddAccount inserts or replaces an account.
func (s *MemoryStore) AddAccount(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.accounts[a.ID] = &copied
}

// AddTransaction inserts or replaces a transaction.
func (s *MemoryStore) AddTransaction(t *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *t
	s.transactions[t.ID] = &copied
}

// AddInvestment inserts or replaces an investment.
func (s *MemoryStore) AddInvestment(i *Investment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *i
	s.investments[i.ID] = &copied
}

// AddGoal inserts or replaces a goal.
func (s *MemoryStore) AddGoal(g *Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *g
	s.goals[g.ID] = &copied
}

func (s *MemoryStore) AccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			copied := *a
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) AccountByID(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *MemoryStore) SearchAccounts(ctx context.Context, query string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var result []*Account
	for _, a := range s.accounts {
		if strings.Contains(strings.ToLower(a.BankName), q) ||
			strings.Contains(strings.ToLower(a.AccountType), q) {
			copied := *a
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// userTransactions collects transactions on the user's accounts, newest
// first. Caller must hold at least a read lock.
func (s *MemoryStore) userTransactions(userID string) []*Transaction {
	owned := make(map[string]bool)
	for _, a := range s.accounts {
		if a.UserID == userID {
			owned[a.ID] = true
		}
	}
	var result []*Transaction
	for _, t := range s.transactions {
		if owned[t.AccountID] {
			copied := *t
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

func (s *MemoryStore) TransactionsByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.userTransactions(userID)
	if after != nil {
		for i, t := range all {
			if t.Date.Equal(after.CreatedAt) && t.ID == after.ID {
				all = all[i+1:]
				break
			}
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) SearchTransactions(ctx context.Context, userID string, filter TxnFilter) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Transaction
	for _, t := range s.userTransactions(userID) {
		if matchesFilter(t, filter) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) InvestmentsByUser(ctx context.Context, userID string) ([]*Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Investment
	for _, i := range s.investments {
		if i.UserID == userID {
			copied := *i
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) GoalsByUser(ctx context.Context, userID string) ([]*Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			copied := *g
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SeedDemoData installs the demo dataset served in open deployments.
func (s *MemoryStore) SeedDemoData() {
	date := func(value string) time.Time {
		t, _ := time.Parse(time.RFC3339, value)
		return t
	}

	s.AddAccount(&Account{
		ID: "ACC001", UserID: "USR001", BankName: "HDFC Bank",
		AccountType: "SAVINGS", AccountNumber: "****1234",
		Balance: 250000, Currency: "INR", CreatedAt: date("2024-01-01T00:00:00Z"),
	})
	s.AddAccount(&Account{
		ID: "ACC002", UserID: "USR001", BankName: "ICICI Bank",
		AccountType: "CURRENT", AccountNumber: "****5678",
		Balance: 150000, Currency: "INR", CreatedAt: date("2024-01-01T00:00:00Z"),
	})

	s.AddTransaction(&Transaction{
		ID: "TXN001", AccountID: "ACC001", Amount: -5000,
		Merchant: "Swiggy", Category: "FOOD",
		Date: date("2025-01-10T12:30:00Z"), Description: "Food delivery", Type: "DEBIT",
	})
	s.AddTransaction(&Transaction{
		ID: "TXN002", AccountID: "ACC001", Amount: 150000,
		Merchant: "TechCorp Salary", Category: "INCOME",
		Date: date("2025-01-01T00:00:00Z"), Description: "Monthly salary", Type: "CREDIT",
	})
	s.AddTransaction(&Transaction{
		ID: "TXN003", AccountID: "ACC001", Amount: -35000,
		Merchant: "House Rent", Category: "HOUSING",
		Date: date("2025-01-05T00:00:00Z"), Description: "Monthly rent", Type: "DEBIT",
	})
	s.AddTransaction(&Transaction{
		ID: "TXN004", AccountID: "ACC001", Amount: -2500,
		Merchant: "Amazon", Category: "SHOPPING",
		Date: date("2025-01-08T15:45:00Z"), Description: "Online shopping", Type: "DEBIT",
	})
	s.AddTransaction(&Transaction{
		ID: "TXN005", AccountID: "ACC002", Amount: -15000,
		Merchant: "Suspicious Merchant XYZ", Category: "OTHER",
		Date: date("2025-01-12T03:30:00Z"), Description: "International transaction",
		Type: "DEBIT", Flagged: true,
	})

	s.AddInvestment(&Investment{
		ID: "INV001", UserID: "USR001", Name: "Axis Bluechip Fund",
		Type: "MUTUAL_FUND", InvestedAmount: 100000, CurrentValue: 125000,
		ReturnsPercent: 25.0, StartDate: date("2024-01-01T00:00:00Z"),
	})
	s.AddInvestment(&Investment{
		ID: "INV002", UserID: "USR001", Name: "HDFC Top 100 Fund",
		Type: "MUTUAL_FUND", InvestedAmount: 50000, CurrentValue: 58000,
		ReturnsPercent: 16.0, StartDate: date("2024-06-01T00:00:00Z"),
	})

	s.AddGoal(&Goal{
		ID: "GOAL001", UserID: "USR001", Name: "Emergency Fund",
		TargetAmount: 500000, CurrentAmount: 250000,
		TargetDate: date("2025-12-31T00:00:00Z"), Priority: "HIGH",
		Status: "ON_TRACK", ProgressPercent: 50,
	})
	s.AddGoal(&Goal{
		ID: "GOAL002", UserID: "USR001", Name: "Europe Trip",
		TargetAmount: 300000, CurrentAmount: 75000,
		TargetDate: date("2025-06-30T00:00:00Z"), Priority: "MEDIUM",
		Status: "BEHIND", ProgressPercent: 25,
	})
}
