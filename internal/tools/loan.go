package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// LoanCalculator computes EMI, total interest, and a 12-month
// amortization schedule. Pure computation, no repository access.
type LoanCalculator struct{}

func NewLoanCalculator() *LoanCalculator { return &LoanCalculator{} }

func (t *LoanCalculator) Name() string { return "loan_calculator" }

func (t *LoanCalculator) Description() string {
	return "Calculate loan EMI, total interest, and amortization schedule"
}

func (t *LoanCalculator) Parameters() map[string]any {
	return map[string]any{
		"principal":     map[string]any{"type": "number", "required": true, "description": "Loan amount"},
		"interest_rate": map[string]any{"type": "number", "required": true, "description": "Annual interest rate (%)"},
		"tenure_months": map[string]any{"type": "integer", "required": true, "description": "Loan tenure in months"},
	}
}

type scheduleEntry struct {
	Month     int     `json:"month"`
	EMI       float64 `json:"emi"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

func (t *LoanCalculator) Execute(ctx context.Context, userID string, params json.RawMessage) (any, error) {
	p := struct {
		Principal    float64 `json:"principal"`
		InterestRate float64 `json:"interest_rate"`
		TenureMonths int     `json:"tenure_months"`
	}{Principal: 1000000, InterestRate: 8.5, TenureMonths: 240}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if p.Principal <= 0 || p.TenureMonths <= 0 || p.InterestRate < 0 {
		return nil, fmt.Errorf("principal and tenure_months must be positive, interest_rate non-negative")
	}

	monthlyRate := p.InterestRate / 100 / 12
	var emi float64
	if monthlyRate > 0 {
		growth := math.Pow(1+monthlyRate, float64(p.TenureMonths))
		emi = p.Principal * monthlyRate * growth / (growth - 1)
	} else {
		emi = p.Principal / float64(p.TenureMonths)
	}

	totalPayment := emi * float64(p.TenureMonths)
	totalInterest := totalPayment - p.Principal

	// Amortization schedule for the first year.
	months := p.TenureMonths
	if months > 12 {
		months = 12
	}
	schedule := make([]scheduleEntry, 0, months)
	balance := p.Principal
	for m := 1; m <= months; m++ {
		interest := balance * monthlyRate
		principal := emi - interest
		balance -= principal
		schedule = append(schedule, scheduleEntry{
			Month:     m,
			EMI:       round2(emi),
			Principal: round2(principal),
			Interest:  round2(interest),
			Balance:   round2(balance),
		})
	}

	return map[string]any{
		"loan_amount":           p.Principal,
		"interest_rate":         p.InterestRate,
		"tenure_months":         p.TenureMonths,
		"monthly_emi":           round2(emi),
		"total_payment":         round2(totalPayment),
		"total_interest":        round2(totalInterest),
		"interest_percentage":   math.Round(totalInterest/p.Principal*1000) / 10,
		"amortization_schedule": schedule,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
