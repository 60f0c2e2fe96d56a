package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// StdioClient talks to an MCP server spawned as a child process over
// stdio.
type StdioClient struct {
	client  *client.Client
	command string
	logger  zerolog.Logger
}

// NewStdioClient spawns the given command and wires an MCP session to its
// stdio. A command string containing spaces is split into command and
// leading arguments.
func NewStdioClient(logger zerolog.Logger, command string, args, env []string) (*StdioClient, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for stdio mcp client")
	}

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(append([]string{}, parts[1:]...), args...)

	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("creating stdio mcp client: %w", err)
	}

	return &StdioClient{
		client:  mcpClient,
		command: cmd,
		logger:  logger.With().Str("component", "mcp_stdio").Str("command", cmd).Logger(),
	}, nil
}

// Start initializes the MCP session.
func (c *StdioClient) Start(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "ergokit",
				Version: "1.0.0",
			},
		},
	}
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initializing mcp client: %w", err)
	}
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("starting mcp client: %w", err)
	}
	c.logger.Info().Msg("mcp session started")
	return nil
}

// ListTools returns all tools the server exposes.
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	c.logger.Debug().Int("tool_count", len(result.Tools)).Msg("received tools")

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaOf(tool),
		}
	}), nil
}

func schemaOf(tool mcp.Tool) map[string]any {
	schema := map[string]any{"type": tool.InputSchema.Type}
	if tool.InputSchema.Properties != nil {
		schema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		schema["required"] = tool.InputSchema.Required
	}
	return schema
}

// InvokeTool calls a tool on the server and collapses its content into a
// map with a "text" entry, plus error details when the server reports
// failure.
func (c *StdioClient) InvokeTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invoking tool %s: %w", name, err)
	}
	return collapseResult(result), nil
}

func collapseResult(result *mcp.CallToolResult) map[string]any {
	output := make(map[string]any)
	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		output["text"] = texts[0]
	default:
		output["text"] = texts
	}
	if result.IsError {
		output["error"] = true
		if len(texts) > 0 {
			output["error_message"] = texts[0]
		}
	}
	return output
}

// Close tears down the session and the child process.
func (c *StdioClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
