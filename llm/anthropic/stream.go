package anthropic

import (
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/ergokit/ergokit/llm"
)

// stream adapts Anthropic's SSE event stream to llm.Stream. Provider
// events map to zero or more neutral chunks; tool argument JSON
// accumulates across input deltas and the assembled tool use block is
// emitted when its content block closes.
type stream struct {
	inner *ssestream.Stream[anthropic.MessageStreamEventUnion]

	queue  []*llm.Chunk
	cur    *llm.Chunk
	err    error
	done   bool
	closed bool

	toolID       string
	toolName     string
	toolArgs     strings.Builder
	usage        *llm.Usage
	finishReason string
}

func newStream(inner *ssestream.Stream[anthropic.MessageStreamEventUnion]) *stream {
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

func (s *stream) pump() bool {
	if !s.inner.Next() {
		if err := s.inner.Err(); err != nil {
			s.err = convertError(err)
			return false
		}
		// Stream ended without a message_stop event.
		s.finish()
		return len(s.queue) > 0
	}

	switch evt := s.inner.Current().AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.usage = &llm.Usage{
			InputTokens:  evt.Message.Usage.InputTokens,
			OutputTokens: evt.Message.Usage.OutputTokens,
		}
		s.queue = append(s.queue, &llm.Chunk{
			Delta: &llm.Delta{Type: llm.DeltaTypeRole, Role: llm.RoleAssistant},
		})

	case anthropic.ContentBlockStartEvent:
		if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			s.toolID = block.ID
			s.toolName = block.Name
			s.toolArgs.Reset()
		}

	case anthropic.ContentBlockDeltaEvent:
		switch d := evt.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text != "" {
				s.queue = append(s.queue, &llm.Chunk{
					Delta: &llm.Delta{Type: llm.DeltaTypeText, Text: d.Text},
				})
			}
		case anthropic.InputJSONDelta:
			if s.toolID != "" && d.PartialJSON != "" {
				s.toolArgs.WriteString(d.PartialJSON)
				s.queue = append(s.queue, &llm.Chunk{
					Delta: &llm.Delta{Type: llm.DeltaTypeToolInput, ToolInput: d.PartialJSON},
				})
			}
		}

	case anthropic.ContentBlockStopEvent:
		s.flushToolCall()

	case anthropic.MessageDeltaEvent:
		if s.usage == nil {
			s.usage = &llm.Usage{}
		}
		if evt.Usage.InputTokens > 0 {
			s.usage.InputTokens = evt.Usage.InputTokens
		}
		s.usage.OutputTokens = evt.Usage.OutputTokens
		if evt.Delta.StopReason != "" {
			s.finishReason = fromStopReason(anthropic.StopReason(evt.Delta.StopReason))
		}

	case anthropic.MessageStopEvent:
		s.finish()
	}
	return true
}

func (s *stream) flushToolCall() {
	if s.toolID == "" {
		return
	}
	args := s.toolArgs.String()
	if args == "" {
		args = "{}"
	}
	s.queue = append(s.queue, &llm.Chunk{
		Delta: &llm.Delta{
			Type: llm.DeltaTypeToolUse,
			ToolUse: &llm.ToolUseBlock{
				ID:        s.toolID,
				Name:      s.toolName,
				Arguments: args,
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
