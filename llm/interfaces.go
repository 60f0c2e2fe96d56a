package llm

import (
	"context"
)

// Client is the boundary to the transport collaborator: given a complete
// request it produces either a full response or a chunk stream.
// Implementations handle provider-specific serialization, authentication,
// and wire details; the pipeline does not care how.
type Client interface {
	// Complete sends a request and returns a complete response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a request and returns a stream of chunks.
	// The caller should read from the returned Stream until it is done or
	// an error occurs, then Close it.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream represents a streaming response. It is a lazy, single-pass,
// forward-only sequence: once consumed it cannot be replayed.
type Stream interface {
	// Next advances to the next chunk in the stream.
	// Returns false when the stream is complete or an error occurs.
	Next() bool

	// Chunk returns the current chunk.
	// Should only be called after Next() returns true.
	Chunk() *Chunk

	// Err returns any error that occurred during streaming.
	Err() error

	// Close releases the underlying transport resources. After Close no
	// further chunks are delivered.
	Close() error
}
