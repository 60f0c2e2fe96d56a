// Package ollama adapts a local Ollama server to the llm.Client
// interface.
package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/ergokit/ergokit/llm"
)

func toMessages(msgs []llm.Message) []api.Message {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == llm.RoleTool {
			// Ollama takes one tool-role message per result.
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeToolResult && block.ToolResult != nil {
					result = append(result, api.Message{
						Role:    "tool",
						Content: block.ToolResult.Content,
					})
				}
			}
			continue
		}
		result = append(result, toMessage(msg))
	}
	return result
}

func toMessage(msg llm.Message) api.Message {
	var content string
	var toolCalls []api.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			if content != "" {
				content += "\n"
			}
			content += block.Text
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse != nil {
				args := make(api.ToolCallFunctionArguments)
				if block.ToolUse.Arguments != "" {
					// Best effort; an unparsable payload becomes empty args.
					_ = json.Unmarshal([]byte(block.ToolUse.Arguments), &args)
				}
				toolCalls = append(toolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      block.ToolUse.Name,
						Arguments: args,
					},
				})
			}
		}
	}

	return api.Message{
		Role:      string(msg.Role),
		Content:   content,
		ToolCalls: toolCalls,
	}
}

func toTools(specs []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, 0, len(specs))
	for i := range specs {
		result = append(result, toTool(&specs[i]))
	}
	return result
}

func toTool(spec *llm.ToolSpec) api.Tool {
	properties := make(map[string]api.ToolProperty)
	schemaType := "object"
	var required []string
	if spec.Schema != nil {
		if t, ok := spec.Schema["type"].(string); ok {
			schemaType = t
		}
		if props, ok := spec.Schema["properties"].(map[string]any); ok {
			for k, v := range props {
				prop := api.ToolProperty{Type: []string{"string"}}
				if propMap, ok := v.(map[string]any); ok {
					if propType, ok := propMap["type"].(string); ok {
						prop.Type = []string{propType}
					}
					if desc, ok := propMap["description"].(string); ok {
						prop.Description = desc
					}
				}
				properties[k] = prop
			}
		}
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

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: api.ToolFunctionParameters{
				Type:       schemaType,
				Properties: properties,
				Required:   required,
			},
		},
	}
}

// fromToolCall converts an Ollama tool call to a neutral tool use block.
// Ollama does not assign call ids, so one is synthesized from the
// function name and position.
func fromToolCall(toolCall api.ToolCall, index int) *llm.ToolUseBlock {
	args := "{}"
	if len(toolCall.Function.Arguments) > 0 {
		if b, err := json.Marshal(toolCall.Function.Arguments); err == nil {
			args = string(b)
		}
	}
	return &llm.ToolUseBlock{
		ID:        fmt.Sprintf("call_%s_%d", toolCall.Function.Name, index),
		Name:      toolCall.Function.Name,
		Arguments: args,
	}
}

func fromDoneReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return llm.StopReasonToolUse
	}
	switch reason {
	case "length":
		return llm.StopReasonMaxTokens
	default:
		return llm.StopReasonEndTurn
	}
}
