// Package conversation provides multi-turn conversation state and a
// tool-calling loop that drives a model until it produces a final
// answer.
package conversation

import (
	"strings"

	"github.com/ergokit/ergokit/llm"
)

// State accumulates the message history of one conversation. Methods
// return the receiver so turns can be chained; State is not safe for
// concurrent use.
type State struct {
	system   string
	messages []llm.Message
}

// NewState creates an empty conversation.
func NewState() *State {
	return &State{}
}

// WithSystem sets the system prompt.
func (s *State) WithSystem(prompt string) *State {
	s.system = prompt
	return s
}

// PushUser appends a user text message.
func (s *State) PushUser(text string) *State {
	s.messages = append(s.messages, llm.NewTextMessage(llm.RoleUser, text))
	return s
}

// PushAssistant appends an assistant text message.
func (s *State) PushAssistant(text string) *State {
	s.messages = append(s.messages, llm.NewTextMessage(llm.RoleAssistant, text))
	return s
}

// PushMessage appends an arbitrary message.
func (s *State) PushMessage(msg llm.Message) *State {
	s.messages = append(s.messages, msg)
	return s
}

// ApplyResponse appends the assistant message carried by a model
// response, preserving its full content including tool use blocks.
func (s *State) ApplyResponse(resp *llm.Response) *State {
	s.messages = append(s.messages, llm.Message{
		Role:    llm.RoleAssistant,
		Content: resp.Content,
	})
	return s
}

// PushToolResults appends a tool message carrying the given results.
func (s *State) PushToolResults(results []llm.ToolResultBlock) *State {
	s.messages = append(s.messages, llm.NewToolResultMessage(results))
	return s
}

// System returns the system prompt.
func (s *State) System() string {
	return s.system
}

// Messages returns the accumulated history. The returned slice is the
// state's own backing array; callers must not mutate it.
func (s *State) Messages() []llm.Message {
	return s.messages
}

// Len returns the number of messages.
func (s *State) Len() int {
	return len(s.messages)
}

// LastText returns the text of the most recent assistant message, or ""
// when there is none.
func (s *State) LastText() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role != llm.RoleAssistant {
			continue
		}
		var b strings.Builder
		for _, block := range s.messages[i].Content {
			if block.Type == llm.ContentBlockTypeText {
				b.WriteString(block.Text)
			}
		}
		return b.String()
	}
	return ""
}

// BuildRequest renders the conversation into a model request.
func (s *State) BuildRequest(model string, tools []llm.ToolSpec, maxTokens int64) *llm.Request {
	return &llm.Request{
		Model:     model,
		Messages:  s.messages,
		System:    s.system,
		Tools:     tools,
		MaxTokens: maxTokens,
	}
}
