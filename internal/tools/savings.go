package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mbd888/fingate/internal/store"
)

// Assumed annual return used for the compound projection.
const savingsAnnualReturn = 0.07

// SavingsCalculator projects how much monthly saving reaches a target,
// using the user's transaction history for the current savings rate.
type SavingsCalculator struct {
	repo store.Repository
}

func NewSavingsCalculator(repo store.Repository) *SavingsCalculator {
	return &SavingsCalculator{repo: repo}
}

func (t *SavingsCalculator) Name() string { return "savings_calculator" }

func (t *SavingsCalculator) Description() string {
	return "Calculate savings potential and provide recommendations"
}

func (t *SavingsCalculator) Parameters() map[string]any {
	return map[string]any{
		"user_id":       map[string]any{"type": "string", "required": false, "description": "User ID"},
		"target_amount": map[string]any{"type": "number", "required": true, "description": "Savings target"},
		"months":        map[string]any{"type": "integer", "required": true, "description": "Time period in months"},
	}
}

func (t *SavingsCalculator) Execute(ctx context.Context, userID string, params json.RawMessage) (any, error) {
	p := struct {
		UserID       string  `json:"user_id"`
		TargetAmount float64 `json:"target_amount"`
		Months       int     `json:"months"`
	}{TargetAmount: 100000, Months: 12}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if p.TargetAmount <= 0 || p.Months <= 0 {
		return nil, fmt.Errorf("target_amount and months must be positive")
	}
	if userID == "" {
		userID = p.UserID
	}

	txns, err := t.repo.SearchTransactions(ctx, userID, store.TxnFilter{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	var income, expenses float64
	for _, txn := range txns {
		if txn.Amount > 0 {
			income += txn.Amount
		} else {
			expenses -= txn.Amount
		}
	}
	currentSavings := income - expenses
	var savingsRate float64
	if income > 0 {
		savingsRate = currentSavings / income * 100
	}

	requiredMonthly := p.TargetAmount / float64(p.Months)
	currentMonthly := currentSavings / 12
	gap := requiredMonthly - currentMonthly

	var recommendations []string
	if gap > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Increase monthly savings by %.0f", gap))
		switch {
		case gap < expenses*0.1:
			recommendations = append(recommendations, "Cut 10% from discretionary spending")
		case gap < expenses*0.2:
			recommendations = append(recommendations, "Reduce entertainment and dining by 20%")
		default:
			recommendations = append(recommendations, "Consider additional income sources")
		}
	}

	// Compound projection of the required contribution.
	monthlyRate := savingsAnnualReturn / 12
	futureValue := requiredMonthly * (math.Pow(1+monthlyRate, float64(p.Months)) - 1) / monthlyRate

	return map[string]any{
		"target_amount":                p.TargetAmount,
		"months_to_goal":               p.Months,
		"required_monthly_savings":     round2(requiredMonthly),
		"current_monthly_savings":      round2(currentMonthly),
		"savings_gap":                  round2(math.Max(0, gap)),
		"current_savings_rate":         math.Round(savingsRate*10) / 10,
		"projected_value_with_interest": round2(futureValue),
		"recommendations":              recommendations,
		"achievable":                   gap <= 0,
	}, nil
}
