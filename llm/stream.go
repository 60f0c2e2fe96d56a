package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// interceptedStream wraps a transport stream and reports its lifecycle
// through the pipeline's interceptor chain: OnStreamChunk before each
// chunk is surfaced, OnStreamEnd once on natural completion, OnError on
// any failure. Closing early counts as cancellation and fires neither
// end hook nor error hook.
type interceptedStream struct {
	inner       Stream
	pipeline    *Pipeline
	ctx         context.Context
	model       string
	requestJSON string
	metadata    map[string]string
	start       time.Time

	index  int
	chunk  *Chunk
	usage  *Usage
	err    error
	done   bool
	closed bool
}

// Next advances to the next chunk. It returns false when the stream is
// exhausted or failed; check Err afterwards.
func (s *interceptedStream) Next() bool {
	if s.done || s.closed || s.err != nil {
		return false
	}

	if s.inner.Next() {
		chunk := s.inner.Chunk()
		chunkJSON, merr := json.Marshal(chunk)
		if merr != nil {
			s.failStream(NewStreamError("encoding chunk", merr))
			return false
		}
		if herr := s.pipeline.interceptors.OnStreamChunk(s.ctx, &StreamChunkContext{
			Operation:   chatOperation,
			Model:       s.model,
			RequestJSON: s.requestJSON,
			ChunkJSON:   string(chunkJSON),
			ChunkIndex:  s.index,
			Metadata:    s.metadata,
		}); herr != nil {
			s.failStream(NewStreamError("interceptor rejected chunk", herr))
			return false
		}
		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}
		s.chunk = chunk
		s.index++
		return true
	}

	if ierr := s.inner.Err(); ierr != nil {
		s.failStream(NewStreamError("reading stream", ierr))
		return false
	}

	s.done = true
	ec := &StreamEndContext{
		Operation:   chatOperation,
		Model:       s.model,
		RequestJSON: s.requestJSON,
		TotalChunks: s.index,
		Duration:    time.Since(s.start),
		Metadata:    s.metadata,
	}
	if s.usage != nil {
		in, out := s.usage.InputTokens, s.usage.OutputTokens
		ec.InputTokens = &in
		ec.OutputTokens = &out
	}
	if herr := s.pipeline.interceptors.OnStreamEnd(s.ctx, ec); herr != nil {
		s.err = NewStreamError("stream end hook failed", herr)
		s.pipeline.interceptors.OnError(s.ctx, &ErrorContext{
			Operation:   chatOperation,
			Model:       s.model,
			RequestJSON: s.requestJSON,
			Err:         s.err,
			Duration:    time.Since(s.start),
			Metadata:    s.metadata,
		})
	}
	return false
}

// failStream records a mid-stream failure and fans it out to OnError.
// OnStreamEnd deliberately does not fire: the stream did not complete.
func (s *interceptedStream) failStream(err error) {
	s.err = err
	s.pipeline.interceptors.OnError(s.ctx, &ErrorContext{
		Operation:   chatOperation,
		Model:       s.model,
		RequestJSON: s.requestJSON,
		Err:         err,
		Duration:    time.Since(s.start),
		Metadata:    s.metadata,
	})
}

// Chunk returns the chunk produced by the last successful Next.
func (s *interceptedStream) Chunk() *Chunk { return s.chunk }

// Err returns the terminal error, if any.
func (s *interceptedStream) Err() error { return s.err }

// Close abandons the stream. This is cancellation, not completion:
// OnStreamEnd does not fire and no error is reported.
func (s *interceptedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.inner.Close()
}

// CollectContent drains the stream and returns the concatenated text
// deltas. The chunks are consumed as they arrive; the stream cannot be
// replayed afterwards, and a mid-stream failure returns the partial text
// alongside the error.
func (s *interceptedStream) CollectContent() (string, error) {
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Chunk().Content())
	}
	if err := s.Err(); err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

// CollectContent drains any stream that also implements a CollectContent
// method, falling back to a manual drain loop otherwise.
func CollectContent(s Stream) (string, error) {
	if c, ok := s.(interface{ CollectContent() (string, error) }); ok {
		return c.CollectContent()
	}
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Chunk().Content())
	}
	return b.String(), s.Err()
}
