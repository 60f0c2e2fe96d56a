package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/mcp"
)

// RegisterMCP discovers every tool exposed by an MCP server and registers
// it under its safe name. The server's input schema passes through to the
// model unchanged.
func (r *Registry) RegisterMCP(ctx context.Context, client mcp.MCPClient) error {
	defs, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing mcp tools: %w", err)
	}

	adapter := mcp.NewNameAdapter()
	for _, def := range defs {
		safeName := adapter.GetSafeName(def.Name)
		originalName := def.Name
		r.Register(llm.ToolSpec{
			Name:        safeName,
			Description: def.Description,
			Schema:      def.InputSchema,
		}, func(ctx context.Context, args json.RawMessage) (any, error) {
			var input map[string]any
			if err := json.Unmarshal(args, &input); err != nil {
				return nil, fmt.Errorf("decoding mcp tool arguments: %w", err)
			}
			return client.InvokeTool(ctx, originalName, input)
		})
		r.logger.Info().Str("tool", safeName).Str("mcp_name", originalName).Msg("registered mcp tool")
	}
	return nil
}
