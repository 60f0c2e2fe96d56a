package mcp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// HTTPClient talks to an MCP server over streamable HTTP.
type HTTPClient struct {
	client  *client.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPClient creates an HTTP MCP client for the given base URL.
func NewHTTPClient(logger zerolog.Logger, baseURL string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required for http mcp client")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating http mcp client: %w", err)
	}

	return &HTTPClient{
		client:  mcpClient,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "mcp_http").Str("base_url", baseURL).Logger(),
	}, nil
}

// Start initializes the MCP session.
func (c *HTTPClient) Start(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("starting http mcp client: %w", err)
	}

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
		return fmt.Errorf("initializing http mcp client: %w", err)
	}
	c.logger.Info().Msg("mcp session started")
	return nil
}

// ListTools returns all tools the server exposes.
func (c *HTTPClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaOf(tool),
		}
	}), nil
}

// InvokeTool calls a tool on the server.
func (c *HTTPClient) InvokeTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
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

// Close tears down the session.
func (c *HTTPClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
