// Package openai adapts OpenAI's chat completion API to the llm.Client
// interface.
package openai

import (
	"github.com/ergokit/ergokit/llm"
	openai "github.com/sashabaranov/go-openai"
)

// toMessages converts neutral messages to OpenAI chat format. Tool-role
// messages fan out into one OpenAI tool message per result block, since
// OpenAI correlates results by ToolCallID rather than by content blocks.
func toMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == llm.RoleTool {
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeToolResult && block.ToolResult != nil {
					result = append(result, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						ToolCallID: block.ToolResult.ID,
						Content:    block.ToolResult.Content,
					})
				}
			}
			continue
		}
		result = append(result, toMessage(msg))
	}
	return result
}

func toMessage(msg llm.Message) openai.ChatCompletionMessage {
	var role string
	switch msg.Role {
	case llm.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		role = openai.ChatMessageRoleSystem
	default:
		role = openai.ChatMessageRoleUser
	}

	var content string
	var toolCalls []openai.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			if content != "" {
				content += "\n"
			}
			content += block.Text
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse != nil {
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   block.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.ToolUse.Name,
						Arguments: block.ToolUse.Arguments,
					},
				})
			}
		}
	}

	return openai.ChatCompletionMessage{
		Role:      role,
		Content:   content,
		ToolCalls: toolCalls,
	}
}

func toTools(specs []llm.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Schema,
			},
		})
	}
	return result
}

// fromToolCall converts an OpenAI tool call to a neutral tool use block.
// The argument payload stays as the raw string the provider produced.
func fromToolCall(toolCall openai.ToolCall) *llm.ToolUseBlock {
	return &llm.ToolUseBlock{
		ID:        toolCall.ID,
		Name:      toolCall.Function.Name,
		Arguments: toolCall.Function.Arguments,
	}
}

func fromFinishReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return llm.StopReasonMaxTokens
	case openai.FinishReasonToolCalls:
		return llm.StopReasonToolUse
	default:
		return llm.StopReasonEndTurn
	}
}
