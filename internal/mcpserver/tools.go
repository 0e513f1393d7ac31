package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the FinGate MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListAccounts = mcp.NewTool("list_accounts",
	mcp.WithDescription(
		"List the user's linked bank accounts with balances. "+
			"Returns each account plus the total balance across all of them."),
	mcp.WithString("user_id",
		mcp.Description("User to list accounts for (defaults to the configured user)")),
)

var ToolListTransactions = mcp.NewTool("list_transactions",
	mcp.WithDescription(
		"List recent transactions, newest first. "+
			"Returns a cursor for fetching the next page when more exist."),
	mcp.WithString("user_id",
		mcp.Description("User to list transactions for (defaults to the configured user)")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transactions to return (default 100, max 500)")),
	mcp.WithString("cursor",
		mcp.Description("Opaque pagination cursor from a previous call")),
)

var ToolAggregateTransactions = mcp.NewTool("aggregate_transactions",
	mcp.WithDescription(
		"Summarize spending over a period: total income, total expenses, "+
			"net cash flow, and a per-category breakdown."),
	mcp.WithString("period",
		mcp.Description("Aggregation window"),
		mcp.Enum("month", "week", "day")),
)

var ToolListInvestments = mcp.NewTool("list_investments",
	mcp.WithDescription(
		"List the user's investment holdings with invested amount, current "+
			"value, and overall portfolio returns."),
)

var ToolListGoals = mcp.NewTool("list_goals",
	mcp.WithDescription(
		"List the user's savings goals with progress, target dates, and "+
			"whether each goal is on track."),
)

var ToolCalculateLoan = mcp.NewTool("calculate_loan",
	mcp.WithDescription(
		"Calculate the monthly EMI for a loan, total interest payable, and "+
			"a 12-month amortization schedule."),
	mcp.WithNumber("principal",
		mcp.Required(),
		mcp.Description("Loan principal amount")),
	mcp.WithNumber("interest_rate",
		mcp.Required(),
		mcp.Description("Annual interest rate in percent (e.g. 8.5)")),
	mcp.WithNumber("tenure_months",
		mcp.Required(),
		mcp.Description("Loan tenure in months")),
)

var ToolCalculateTax = mcp.NewTool("calculate_tax",
	mcp.WithDescription(
		"Compare income tax liability under the old and new regimes, "+
			"including cess, and recommend the cheaper regime plus unused "+
			"deduction headroom."),
	mcp.WithNumber("annual_income",
		mcp.Required(),
		mcp.Description("Gross annual income")),
	mcp.WithNumber("deductions_80c",
		mcp.Description("Section 80C deductions claimed (capped at 150000)")),
	mcp.WithNumber("deductions_80d",
		mcp.Description("Section 80D deductions claimed (capped at 25000)")),
)

var ToolPlanSavings = mcp.NewTool("plan_savings",
	mcp.WithDescription(
		"Work out the monthly savings needed to hit a target amount, compare "+
			"it with the user's current savings rate, and suggest adjustments."),
	mcp.WithNumber("target_amount",
		mcp.Required(),
		mcp.Description("Amount to save")),
	mcp.WithNumber("months",
		mcp.Required(),
		mcp.Description("Months available to reach the target")),
)

var ToolScoreFraudRisk = mcp.NewTool("score_fraud_risk",
	mcp.WithDescription(
		"Score a transaction for fraud risk against the user's history. "+
			"Returns a risk score, contributing factors, and a recommended "+
			"action (ALLOW, REVIEW, or BLOCK)."),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount (negative for debits)")),
	mcp.WithString("merchant",
		mcp.Required(),
		mcp.Description("Merchant name")),
	mcp.WithString("date",
		mcp.Description("Transaction timestamp, RFC3339 (defaults to now)")),
	mcp.WithString("category",
		mcp.Description("Transaction category")),
	mcp.WithString("mode",
		mcp.Description("Payment mode (e.g. 'INTERNATIONAL_CARD')")),
)

var ToolGenerateInsights = mcp.NewTool("generate_insights",
	mcp.WithDescription(
		"Generate personalized financial insights from the user's accounts, "+
			"transactions, investments, and goals."),
	mcp.WithString("insight_type",
		mcp.Description("Focus area for the insights"),
		mcp.Enum("comprehensive", "spending", "saving", "investment")),
)
