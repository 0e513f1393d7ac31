package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mbd888/fingate/internal/store"
)

// Asker produces a free-form narrative for a prompt. Satisfied by
// advisor.Client; a nil Asker keeps the tool fully deterministic.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Insight is one generated observation with a suggested action.
type Insight struct {
	Type        string `json:"type"` // warning, info, success, recommendation
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Action      string `json:"action"`
}

// InsightGenerator derives personalized insights from the user's
// accounts, transactions, investments, and goals. When an advisor is
// wired, it adds a narrative summary; the rule-based insights never
// depend on it.
type InsightGenerator struct {
	repo    store.Repository
	advisor Asker
}

func NewInsightGenerator(repo store.Repository, advisor Asker) *InsightGenerator {
	return &InsightGenerator{repo: repo, advisor: advisor}
}

func (t *InsightGenerator) Name() string { return "insight_generator" }

func (t *InsightGenerator) Description() string {
	return "Generate personalized financial insights and recommendations"
}

func (t *InsightGenerator) Parameters() map[string]any {
	return map[string]any{
		"user_id":      map[string]any{"type": "string", "required": false, "description": "User ID"},
		"insight_type": map[string]any{"type": "string", "required": false, "description": "spending, savings, investment, or general"},
	}
}

func (t *InsightGenerator) Execute(ctx context.Context, userID string, params json.RawMessage) (any, error) {
	p := struct {
		UserID      string `json:"user_id"`
		InsightType string `json:"insight_type"`
	}{InsightType: "general"}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if userID == "" {
		userID = p.UserID
	}
	switch p.InsightType {
	case "spending", "savings", "investment", "general":
	default:
		return nil, fmt.Errorf("insight_type must be spending, savings, investment, or general")
	}

	accounts, err := t.repo.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	txns, err := t.repo.SearchTransactions(ctx, userID, store.TxnFilter{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	var totalBalance float64
	for _, a := range accounts {
		totalBalance += a.Balance
	}
	var income, expenses float64
	spendByCategory := make(map[string]float64)
	for _, txn := range txns {
		if txn.Amount > 0 {
			income += txn.Amount
		} else {
			expenses -= txn.Amount
			spendByCategory[txn.Category] -= txn.Amount
		}
	}
	monthlyIncome := income / 12
	monthlyExpenses := expenses / 12
	var savingsRate float64
	if monthlyIncome > 0 {
		savingsRate = (monthlyIncome - monthlyExpenses) / monthlyIncome * 100
	}

	var insights []Insight
	wants := func(kind string) bool { return p.InsightType == kind || p.InsightType == "general" }

	if wants("spending") {
		if monthlyIncome > 0 && monthlyExpenses > monthlyIncome*0.8 {
			insights = append(insights, Insight{
				Type: "warning", Category: "spending", Priority: "HIGH",
				Title:       "High Expense Ratio Alert",
				Description: fmt.Sprintf("You're spending %.1f%% of your income. Consider reducing expenses.", monthlyExpenses/monthlyIncome*100),
				Action:      "Review and cut unnecessary expenses",
			})
		}
		if top, amount := topCategory(spendByCategory); top != "" {
			insights = append(insights, Insight{
				Type: "info", Category: "spending", Priority: "MEDIUM",
				Title:       "Highest Spending Category",
				Description: fmt.Sprintf("%s accounts for %.0f of your expenses", top, amount),
				Action:      fmt.Sprintf("Consider ways to reduce %s spending", top),
			})
		}
	}

	if wants("savings") {
		if savingsRate < 20 {
			insights = append(insights, Insight{
				Type: "warning", Category: "savings", Priority: "HIGH",
				Title:       "Low Savings Rate",
				Description: fmt.Sprintf("You're saving only %.1f%% of income. Aim for at least 20%%.", savingsRate),
				Action:      fmt.Sprintf("Increase monthly savings by %.0f", monthlyIncome*0.2-(monthlyIncome-monthlyExpenses)),
			})
		}
		if needed := monthlyExpenses * 6; totalBalance < needed {
			insights = append(insights, Insight{
				Type: "recommendation", Category: "savings", Priority: "HIGH",
				Title:       "Build Emergency Fund",
				Description: fmt.Sprintf("Your emergency fund should be %.0f (6 months expenses)", needed),
				Action:      fmt.Sprintf("Save additional %.0f", needed-totalBalance),
			})
		}
	}

	if wants("investment") {
		investments, err := t.repo.InvestmentsByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load investments: %w", err)
		}
		if len(investments) > 0 {
			var invested, current float64
			for _, inv := range investments {
				invested += inv.InvestedAmount
				current += inv.CurrentValue
			}
			var returns float64
			if invested > 0 {
				returns = (current - invested) / invested * 100
			}
			kind, action := "info", "Review and rebalance portfolio"
			if returns > 10 {
				kind, action = "success", "Continue current strategy"
			}
			insights = append(insights, Insight{
				Type: kind, Category: "investment", Priority: "MEDIUM",
				Title:       "Portfolio Performance",
				Description: fmt.Sprintf("Your investments have %.1f%% returns", returns),
				Action:      action,
			})
		} else {
			insights = append(insights, Insight{
				Type: "recommendation", Category: "investment", Priority: "HIGH",
				Title:       "Start Investing",
				Description: "You have no active investments. Start with SIPs in mutual funds.",
				Action:      "Begin with 5,000 monthly SIP",
			})
		}
	}

	if p.InsightType == "general" {
		goals, err := t.repo.GoalsByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load goals: %w", err)
		}
		behind := 0
		for _, g := range goals {
			if g.Status == "BEHIND" {
				behind++
			}
		}
		if behind > 0 {
			insights = append(insights, Insight{
				Type: "warning", Category: "goals", Priority: "MEDIUM",
				Title:       "Goals Behind Schedule",
				Description: fmt.Sprintf("%d of your %d goals are behind schedule", behind, len(goals)),
				Action:      "Increase contributions to lagging goals",
			})
		}
	}

	result := map[string]any{
		"insight_type": p.InsightType,
		"insights":     insights,
		"count":        len(insights),
		"metrics": map[string]any{
			"total_balance":    round2(totalBalance),
			"monthly_income":   round2(monthlyIncome),
			"monthly_expenses": round2(monthlyExpenses),
			"savings_rate":     math.Round(savingsRate*10) / 10,
		},
	}

	if t.advisor != nil {
		prompt := fmt.Sprintf(
			"Summarize in two sentences for a customer: monthly income %.0f, monthly expenses %.0f, savings rate %.1f%%, %d insights generated.",
			monthlyIncome, monthlyExpenses, savingsRate, len(insights))
		if narrative, err := t.advisor.Ask(ctx, prompt); err == nil && narrative != "" {
			result["narrative"] = narrative
		}
	}

	return result, nil
}

func topCategory(spend map[string]float64) (string, float64) {
	var best string
	var max float64
	for cat, amount := range spend {
		if amount > max || (amount == max && cat < best) {
			best, max = cat, amount
		}
	}
	return best, max
}
