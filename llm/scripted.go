package llm

import (
	"context"
	"sync"
)

// ScriptedClient is a transport fake for tests and local development. It
// replays a fixed script of responses and streams in order, recording
// every request it receives. The zero value is usable; an exhausted
// script yields a provider error.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []*Response
	streams   [][]*Chunk
	errs      []error
	requests  []*Request
}

// NewScriptedClient creates an empty scripted client.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// QueueResponse appends a canned response for the next Complete call.
func (c *ScriptedClient) QueueResponse(resp *Response) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
	c.errs = append(c.errs, nil)
	return c
}

// QueueText appends a canned plain-text assistant response.
func (c *ScriptedClient) QueueText(text string) *ScriptedClient {
	return c.QueueResponse(&Response{
		Content:    []ContentBlock{{Type: ContentBlockTypeText, Text: text}},
		StopReason: StopReasonEndTurn,
	})
}

// QueueError appends an error for the next Complete call.
func (c *ScriptedClient) QueueError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, nil)
	c.errs = append(c.errs, err)
	return c
}

// QueueStream appends a canned chunk sequence for the next Stream call.
func (c *ScriptedClient) QueueStream(chunks ...*Chunk) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = append(c.streams, chunks)
	return c
}

// QueueTextStream appends a stream that yields each given string as a
// text delta, followed by a final chunk carrying the stop reason.
func (c *ScriptedClient) QueueTextStream(deltas ...string) *ScriptedClient {
	chunks := make([]*Chunk, 0, len(deltas)+1)
	for _, d := range deltas {
		chunks = append(chunks, &Chunk{Delta: &Delta{Type: DeltaTypeText, Text: d}})
	}
	chunks = append(chunks, &Chunk{FinishReason: StopReasonEndTurn})
	return c.QueueStream(chunks...)
}

// Requests returns a copy of every request received so far.
func (c *ScriptedClient) Requests() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Request, len(c.requests))
	copy(out, c.requests)
	return out
}

func (c *ScriptedClient) Complete(_ context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return nil, NewProviderError("scripted client: no responses queued", false, nil)
	}
	resp, err := c.responses[0], c.errs[0]
	c.responses = c.responses[1:]
	c.errs = c.errs[1:]
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ScriptedClient) Stream(_ context.Context, req *Request) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.streams) == 0 {
		return nil, NewProviderError("scripted client: no streams queued", false, nil)
	}
	chunks := c.streams[0]
	c.streams = c.streams[1:]
	return &scriptedStream{chunks: chunks}, nil
}

// scriptedStream replays a fixed chunk slice. Set failAfter >= 0 to
// surface an error once that many chunks have been delivered.
type scriptedStream struct {
	chunks    []*Chunk
	pos       int
	cur       *Chunk
	err       error
	failAfter int
	failErr   error
	closed    bool
}

// NewScriptedStream builds a standalone replay stream, useful for
// testing stream consumers directly.
func NewScriptedStream(chunks ...*Chunk) Stream {
	return &scriptedStream{chunks: chunks, failAfter: -1}
}

// NewFailingStream builds a replay stream that delivers failAfter chunks
// and then fails with err.
func NewFailingStream(err error, failAfter int, chunks ...*Chunk) Stream {
	return &scriptedStream{chunks: chunks, failAfter: failAfter, failErr: err}
}

func (s *scriptedStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if s.failErr != nil && s.pos >= s.failAfter {
		s.err = s.failErr
		return false
	}
	if s.pos >= len(s.chunks) {
		return false
	}
	s.cur = s.chunks[s.pos]
	s.pos++
	return true
}

func (s *scriptedStream) Chunk() *Chunk { return s.cur }
func (s *scriptedStream) Err() error    { return s.err }
func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}
