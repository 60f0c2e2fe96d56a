package ollama

import (
	"context"
	"sync"

	"github.com/ollama/ollama/api"

	"github.com/ergokit/ergokit/llm"
)

// stream adapts Ollama's callback-driven chat API to llm.Stream. The
// request runs in a goroutine that pushes chunks through a channel; Close
// cancels the request context, which unblocks both sides.
type stream struct {
	ch     chan *llm.Chunk
	cancel context.CancelFunc

	cur    *llm.Chunk
	closed bool

	mu  sync.Mutex
	err error
}

func newStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &stream{
		ch:     make(chan *llm.Chunk, 8),
		cancel: cancel,
	}

	go func() {
		defer close(s.ch)

		sentRole := false
		toolIndex := 0
		err := client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if !sentRole {
				sentRole = true
				if err := s.emit(ctx, &llm.Chunk{
					Delta: &llm.Delta{Type: llm.DeltaTypeRole, Role: llm.RoleAssistant},
				}); err != nil {
					return err
				}
			}

			// Ollama delivers incremental tokens, not cumulative content.
			if resp.Message.Content != "" {
				if err := s.emit(ctx, &llm.Chunk{
					Delta: &llm.Delta{Type: llm.DeltaTypeText, Text: resp.Message.Content},
				}); err != nil {
					return err
				}
			}

			for _, toolCall := range resp.Message.ToolCalls {
				if err := s.emit(ctx, &llm.Chunk{
					Delta: &llm.Delta{
						Type:    llm.DeltaTypeToolUse,
						ToolUse: fromToolCall(toolCall, toolIndex),
					},
				}); err != nil {
					return err
				}
				toolIndex++
			}

			if resp.Done {
				return s.emit(ctx, &llm.Chunk{
					FinishReason: fromDoneReason(resp.DoneReason, toolIndex > 0),
					Usage: &llm.Usage{
						InputTokens:  int64(resp.PromptEvalCount),
						OutputTokens: int64(resp.EvalCount),
					},
				})
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			s.setErr(convertError(err))
		}
	}()

	return s
}

func (s *stream) emit(ctx context.Context, chunk *llm.Chunk) error {
	select {
	case s.ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) Next() bool {
	if s.closed {
		return false
	}
	chunk, ok := <-s.ch
	if !ok {
		return false
	}
	s.cur = chunk
	return true
}

func (s *stream) Chunk() *llm.Chunk { return s.cur }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}
