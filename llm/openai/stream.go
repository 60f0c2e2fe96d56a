package openai

import (
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ergokit/ergokit/llm"
)

// stream adapts OpenAI's SSE stream to llm.Stream. One provider event
// can expand into several neutral chunks (role, text, tool deltas), so
// decoded chunks wait in a queue until the consumer pulls them.
type stream struct {
	inner *openai.ChatCompletionStream

	queue  []*llm.Chunk
	cur    *llm.Chunk
	err    error
	done   bool
	closed bool

	sentRole     bool
	toolID       string
	toolName     string
	toolArgs     strings.Builder
	usage        *llm.Usage
	finishReason string
}

func newStream(inner *openai.ChatCompletionStream) *stream {
	return &stream{inner: inner}
}

func (s *stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	for len(s.queue) == 0 {
		if s.done {
			return false
		}
		if !s.pump() {
			return false
		}
	}
	s.cur = s.queue[0]
	s.queue = s.queue[1:]
	return true
}

// pump reads one provider event and appends the resulting chunks to the
// queue. It returns false when the stream ended or failed.
func (s *stream) pump() bool {
	response, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finish()
			return len(s.queue) > 0
		}
		s.err = convertError(err)
		return false
	}

	// A usage-only frame arrives after the final choice when stream
	// options request usage, so the closing chunk waits for it.
	if len(response.Choices) == 0 {
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			s.usage = &llm.Usage{
				InputTokens:  int64(response.Usage.PromptTokens),
				OutputTokens: int64(response.Usage.CompletionTokens),
			}
		}
		if s.finishReason != "" {
			s.finish()
		}
		return true
	}

	choice := response.Choices[0]
	if !s.sentRole && choice.Delta.Role != "" {
		s.sentRole = true
		s.queue = append(s.queue, &llm.Chunk{
			Delta: &llm.Delta{Type: llm.DeltaTypeRole, Role: llm.RoleAssistant},
		})
	}

	if choice.Delta.Content != "" {
		s.queue = append(s.queue, &llm.Chunk{
			Delta: &llm.Delta{Type: llm.DeltaTypeText, Text: choice.Delta.Content},
		})
	}

	for _, tc := range choice.Delta.ToolCalls {
		if tc.ID != "" && tc.ID != s.toolID {
			s.flushToolCall()
			s.toolID = tc.ID
			s.toolName = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			s.toolArgs.WriteString(tc.Function.Arguments)
			s.queue = append(s.queue, &llm.Chunk{
				Delta: &llm.Delta{Type: llm.DeltaTypeToolInput, ToolInput: tc.Function.Arguments},
			})
		}
	}

	if response.Usage != nil && response.Usage.TotalTokens > 0 {
		s.usage = &llm.Usage{
			InputTokens:  int64(response.Usage.PromptTokens),
			OutputTokens: int64(response.Usage.CompletionTokens),
		}
	}

	if choice.FinishReason != "" {
		s.finishReason = fromFinishReason(choice.FinishReason)
	}
	return true
}

// flushToolCall emits the completed tool use block once all its argument
// fragments have arrived.
func (s *stream) flushToolCall() {
	if s.toolID == "" {
		return
	}
	s.queue = append(s.queue, &llm.Chunk{
		Delta: &llm.Delta{
			Type: llm.DeltaTypeToolUse,
			ToolUse: &llm.ToolUseBlock{
				ID:        s.toolID,
				Name:      s.toolName,
				Arguments: s.toolArgs.String(),
			},
		},
	})
	s.toolID = ""
	s.toolName = ""
	s.toolArgs.Reset()
}

func (s *stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.flushToolCall()
	reason := s.finishReason
	if reason == "" {
		reason = llm.StopReasonEndTurn
	}
	s.queue = append(s.queue, &llm.Chunk{FinishReason: reason, Usage: s.usage})
}

func (s *stream) Chunk() *llm.Chunk { return s.cur }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}
