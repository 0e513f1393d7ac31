package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *GatewayClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *GatewayClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListAccounts lists the user's bank accounts.
func (h *Handlers) HandleListAccounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if userID := req.GetString("user_id", ""); userID != "" {
		params["user_id"] = userID
	}

	raw, err := h.client.Resource(ctx, "accounts", "list", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list accounts: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListTransactions lists recent transactions with pagination.
func (h *Handlers) HandleListTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if userID := req.GetString("user_id", ""); userID != "" {
		params["user_id"] = userID
	}
	if limit := req.GetInt("limit", 0); limit > 0 {
		params["limit"] = limit
	}
	if cursor := req.GetString("cursor", ""); cursor != "" {
		params["cursor"] = cursor
	}

	raw, err := h.client.Resource(ctx, "transactions", "list", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transactions: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleAggregateTransactions summarizes cash flow over a period.
func (h *Handlers) HandleAggregateTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{
		"period": req.GetString("period", "month"),
	}

	raw, err := h.client.Resource(ctx, "transactions", "aggregate", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to aggregate transactions: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListInvestments lists the investment portfolio.
func (h *Handlers) HandleListInvestments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Resource(ctx, "investments", "list", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list investments: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListGoals lists savings goals.
func (h *Handlers) HandleListGoals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Resource(ctx, "goals", "list", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list goals: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCalculateLoan computes EMI and an amortization schedule.
func (h *Handlers) HandleCalculateLoan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal := req.GetFloat("principal", 0)
	rate := req.GetFloat("interest_rate", 0)
	tenure := req.GetInt("tenure_months", 0)
	if principal <= 0 || tenure <= 0 {
		return mcp.NewToolResultError("principal and tenure_months must be positive"), nil
	}

	raw, err := h.client.Tool(ctx, "loan_calculator", map[string]any{
		"principal":     principal,
		"interest_rate": rate,
		"tenure_months": tenure,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Loan calculation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCalculateTax compares both tax regimes.
func (h *Handlers) HandleCalculateTax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	income := req.GetFloat("annual_income", 0)
	if income <= 0 {
		return mcp.NewToolResultError("annual_income must be positive"), nil
	}

	raw, err := h.client.Tool(ctx, "tax_calculator", map[string]any{
		"annual_income":  income,
		"deductions_80c": req.GetFloat("deductions_80c", 0),
		"deductions_80d": req.GetFloat("deductions_80d", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Tax calculation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandlePlanSavings computes the required monthly savings for a target.
func (h *Handlers) HandlePlanSavings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetFloat("target_amount", 0)
	months := req.GetInt("months", 0)
	if target <= 0 || months <= 0 {
		return mcp.NewToolResultError("target_amount and months must be positive"), nil
	}

	raw, err := h.client.Tool(ctx, "savings_calculator", map[string]any{
		"target_amount": target,
		"months":        months,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Savings planning failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleScoreFraudRisk scores a transaction for fraud risk.
func (h *Handlers) HandleScoreFraudRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchant := req.GetString("merchant", "")
	if merchant == "" {
		return mcp.NewToolResultError("merchant is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount == 0 {
		return mcp.NewToolResultError("amount must be non-zero"), nil
	}

	tx := map[string]any{
		"amount":   amount,
		"merchant": merchant,
	}
	if date := req.GetString("date", ""); date != "" {
		tx["date"] = date
	}
	if category := req.GetString("category", ""); category != "" {
		tx["category"] = category
	}
	if mode := req.GetString("mode", ""); mode != "" {
		tx["mode"] = mode
	}

	raw, err := h.client.Tool(ctx, "fraud_risk_scorer", map[string]any{
		"transaction": tx,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Fraud scoring failed: %v", err)), nil
	}

	text, err := formatAssessment(raw)
	if err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGenerateInsights generates personalized financial insights.
func (h *Handlers) HandleGenerateInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if insightType := req.GetString("insight_type", ""); insightType != "" {
		params["insight_type"] = insightType
	}

	raw, err := h.client.Tool(ctx, "insight_generator", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Insight generation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

// formatAssessment renders a fraud assessment as readable text so the
// LLM highlights the action instead of dumping JSON.
func formatAssessment(raw json.RawMessage) (string, error) {
	var a struct {
		Score    float64 `json:"risk_score"`
		Severity string  `json:"severity"`
		Action   string  `json:"action"`
		Factors  []struct {
			Name   string  `json:"factor"`
			Score  float64 `json:"score"`
			Reason string  `json:"reason"`
		} `json:"risk_factors"`
		Recommendation string `json:"recommendation"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	if a.Action == "" {
		return "", fmt.Errorf("no action in assessment")
	}

	var sb bytes.Buffer
	fmt.Fprintf(&sb, "Fraud risk: %.2f (%s)\n", a.Score, a.Severity)
	fmt.Fprintf(&sb, "Action: %s\n", a.Action)
	if len(a.Factors) > 0 {
		sb.WriteString("Factors:\n")
		for _, f := range a.Factors {
			fmt.Fprintf(&sb, "  - %s (+%.2f): %s\n", f.Name, f.Score, f.Reason)
		}
	}
	if a.Recommendation != "" {
		fmt.Fprintf(&sb, "Recommendation: %s\n", a.Recommendation)
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}
