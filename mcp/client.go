// Package mcp connects to Model Context Protocol servers over stdio or
// HTTP and exposes their tools for registration.
package mcp

import (
	"context"
)

// ToolDefinition describes one tool exposed by an MCP server.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// MCPClient is the transport-neutral interface for talking to an MCP
// server.
type MCPClient interface {
	// Start initializes the connection.
	Start(ctx context.Context) error

	// ListTools returns all tools the server exposes.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool calls a tool by its original server-side name.
	InvokeTool(ctx context.Context, name string, input map[string]any) (map[string]any, error)

	// Close tears down the connection.
	Close() error
}
