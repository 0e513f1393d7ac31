// Package mcpserver bridges a FinGate instance to MCP: it exposes the
// gateway's resources and tools as MCP tools over stdio so LLM clients
// can query financial data through the standard envelope API.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all FinGate tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fingate", "1.0.0")
	client := NewGatewayClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListAccounts, h.HandleListAccounts)
	s.AddTool(ToolListTransactions, h.HandleListTransactions)
	s.AddTool(ToolAggregateTransactions, h.HandleAggregateTransactions)
	s.AddTool(ToolListInvestments, h.HandleListInvestments)
	s.AddTool(ToolListGoals, h.HandleListGoals)
	s.AddTool(ToolCalculateLoan, h.HandleCalculateLoan)
	s.AddTool(ToolCalculateTax, h.HandleCalculateTax)
	s.AddTool(ToolPlanSavings, h.HandlePlanSavings)
	s.AddTool(ToolScoreFraudRisk, h.HandleScoreFraudRisk)
	s.AddTool(ToolGenerateInsights, h.HandleGenerateInsights)

	return s
}
