// FinGate MCP bridge - exposes gateway resources and tools to LLM clients over stdio
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/fingate/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL: envOrDefault("FINGATE_API_URL", "http://localhost:8080"),
		Token:  os.Getenv("FINGATE_TOKEN"),
		APIKey: os.Getenv("FINGATE_API_KEY"),
		UserID: os.Getenv("FINGATE_USER_ID"),
	}

	if cfg.Token == "" && cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "FINGATE_TOKEN or FINGATE_API_KEY is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
