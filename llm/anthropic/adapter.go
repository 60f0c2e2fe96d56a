// Package anthropic adapts Anthropic's Messages API to the llm.Client
// interface.
package anthropic

import (
	"encoding/json"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/samber/lo"

	"github.com/ergokit/ergokit/llm"
)

func toMessageParams(msgs []llm.Message) []anthropic.MessageParam {
	return lo.Map(msgs, func(msg llm.Message, _ int) anthropic.MessageParam {
		return toMessageParam(msg)
	})
}

func toMessageParam(msg llm.Message) anthropic.MessageParam {
	contentBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			contentBlocks = append(contentBlocks, anthropic.NewTextBlock(block.Text))
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse != nil {
				contentBlocks = append(contentBlocks, anthropic.NewToolUseBlock(
					block.ToolUse.ID,
					json.RawMessage(block.ToolUse.Arguments),
					block.ToolUse.Name,
				))
			}
		case llm.ContentBlockTypeToolResult:
			if block.ToolResult != nil {
				contentBlocks = append(contentBlocks, anthropic.NewToolResultBlock(
					block.ToolResult.ID,
					block.ToolResult.Content,
					block.ToolResult.IsError,
				))
			}
		}
	}

	// Anthropic has no tool role; results travel in a user message.
	switch msg.Role {
	case llm.RoleAssistant:
		return anthropic.NewAssistantMessage(contentBlocks...)
	default:
		return anthropic.NewUserMessage(contentBlocks...)
	}
}

func toToolParams(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) anthropic.ToolUnionParam {
		return toToolParam(&spec)
	})
}

func toToolParam(spec *llm.ToolSpec) anthropic.ToolUnionParam {
	var properties any
	var required []string
	if spec.Schema != nil {
		properties = spec.Schema["properties"]
		if req, ok := spec.Schema["required"].([]string); ok {
			required = req
		} else if raw, ok := spec.Schema["required"].([]any); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}
}

// rawArguments renders a tool input payload back to the raw string form
// the rest of the pipeline treats as opaque.
func rawArguments(input any) string {
	if input == nil {
		return "{}"
	}
	if raw, ok := input.(json.RawMessage); ok && len(raw) > 0 {
		return string(raw)
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func fromStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonToolUse:
		return llm.StopReasonToolUse
	case anthropic.StopReasonMaxTokens:
		return llm.StopReasonMaxTokens
	default:
		return llm.StopReasonEndTurn
	}
}
