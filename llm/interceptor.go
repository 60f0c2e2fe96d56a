package llm

import (
	"context"
	"time"
)

// RequestContext is passed to BeforeRequest hooks. Metadata is mutable
// during the request phase; values set here are visible, read-only by
// convention, to every later phase of the same call. The map is never
// shared across concurrent calls.
type RequestContext struct {
	// Operation tags the API surface being called, e.g. "chat".
	Operation string
	// Model is the model identifier for this call.
	Model string
	// RequestJSON is the serialized request body.
	RequestJSON string
	// Metadata is a per-call scratch map shared between hooks.
	Metadata map[string]string
}

// ResponseContext is passed to AfterResponse hooks after a successful
// non-streaming call.
type ResponseContext struct {
	Operation    string
	Model        string
	RequestJSON  string
	ResponseJSON string
	Duration     time.Duration
	InputTokens  *int64
	OutputTokens *int64
	Metadata     map[string]string
}

// StreamChunkContext is passed to OnStreamChunk hooks, once per chunk.
// ChunkIndex is zero-based and matches delivery order.
type StreamChunkContext struct {
	Operation   string
	Model       string
	RequestJSON string
	ChunkJSON   string
	ChunkIndex  int
	Metadata    map[string]string
}

// StreamEndContext is passed to OnStreamEnd hooks when a stream completes
// normally. Token counts are the provider-reported cumulative totals from
// the final chunk, nil when the provider did not report any.
type StreamEndContext struct {
	Operation    string
	Model        string
	RequestJSON  string
	TotalChunks  int
	Duration     time.Duration
	InputTokens  *int64
	OutputTokens *int64
	Metadata     map[string]string
}

// ErrorContext is passed to OnError hooks on any failure path. Model and
// RequestJSON may be empty if the failure occurred before they were
// resolved; Metadata may be nil for the same reason.
type ErrorContext struct {
	Operation   string
	Model       string
	RequestJSON string
	Err         error
	Duration    time.Duration
	Metadata    map[string]string
}

// Interceptor observes the lifecycle of every call made through a
// pipeline. Embed BaseInterceptor to get safe no-op defaults and
// implement only the hooks you need.
//
// BeforeRequest and AfterResponse may return an error to abort the call;
// OnStreamChunk may return an error to abort delivery of the remaining
// stream. OnStreamEnd and OnError are observational only.
type Interceptor interface {
	// BeforeRequest runs before the transport call. It may mutate
	// ctx.Metadata. Returning an error aborts the call: no transport call
	// is made and later interceptors' BeforeRequest hooks do not run.
	BeforeRequest(ctx context.Context, rc *RequestContext) error

	// AfterResponse runs after a successful non-streaming transport call.
	// Returning an error fails the call even though the response data was
	// already fetched.
	AfterResponse(ctx context.Context, rc *ResponseContext) error

	// OnStreamChunk runs once per chunk, before the chunk is handed to
	// the caller. Returning an error aborts the rest of the stream.
	OnStreamChunk(ctx context.Context, rc *StreamChunkContext) error

	// OnStreamEnd runs once when a stream completes normally. It does not
	// run after a mid-stream failure or cancellation.
	OnStreamEnd(ctx context.Context, rc *StreamEndContext) error

	// OnError runs on any failure path. It must not alter control flow;
	// it is invoked for every interceptor regardless of what earlier
	// hooks did, and has no way to mask or replace the original error.
	OnError(ctx context.Context, rc *ErrorContext)
}

// BaseInterceptor provides no-op implementations of every hook.
type BaseInterceptor struct{}

func (BaseInterceptor) BeforeRequest(context.Context, *RequestContext) error     { return nil }
func (BaseInterceptor) AfterResponse(context.Context, *ResponseContext) error    { return nil }
func (BaseInterceptor) OnStreamChunk(context.Context, *StreamChunkContext) error { return nil }
func (BaseInterceptor) OnStreamEnd(context.Context, *StreamEndContext) error     { return nil }
func (BaseInterceptor) OnError(context.Context, *ErrorContext)                   {}

// InterceptorChain holds interceptors in registration order and fans each
// lifecycle event out to all of them, strictly in that order, for every
// hook kind. The chain is immutable once the owning client is built, so
// it is safe to share across concurrent calls.
type InterceptorChain struct {
	interceptors []Interceptor
}

// NewInterceptorChain creates a chain from the given interceptors.
func NewInterceptorChain(interceptors ...Interceptor) *InterceptorChain {
	return &InterceptorChain{interceptors: interceptors}
}

// Add appends an interceptor to the chain. Call before the chain is
// shared; chains are not safe for concurrent mutation.
func (c *InterceptorChain) Add(i Interceptor) {
	c.interceptors = append(c.interceptors, i)
}

// Len returns the number of registered interceptors.
func (c *InterceptorChain) Len() int {
	return len(c.interceptors)
}

// BeforeRequest invokes every interceptor's BeforeRequest in registration
// order. The first failure stops the chain and is returned; interceptors
// after the failing one do not run for this phase.
func (c *InterceptorChain) BeforeRequest(ctx context.Context, rc *RequestContext) error {
	for _, i := range c.interceptors {
		if err := i.BeforeRequest(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// AfterResponse invokes every interceptor's AfterResponse in registration
// order, stopping at the first failure.
func (c *InterceptorChain) AfterResponse(ctx context.Context, rc *ResponseContext) error {
	for _, i := range c.interceptors {
		if err := i.AfterResponse(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// OnStreamChunk invokes every interceptor's OnStreamChunk in registration
// order, stopping at the first failure.
func (c *InterceptorChain) OnStreamChunk(ctx context.Context, rc *StreamChunkContext) error {
	for _, i := range c.interceptors {
		if err := i.OnStreamChunk(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// OnStreamEnd invokes every interceptor's OnStreamEnd in registration
// order, stopping at the first failure.
func (c *InterceptorChain) OnStreamEnd(ctx context.Context, rc *StreamEndContext) error {
	for _, i := range c.interceptors {
		if err := i.OnStreamEnd(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// OnError invokes every interceptor's OnError in registration order.
// Every interceptor runs regardless of prior outcomes; this hook cannot
// fail the call further.
func (c *InterceptorChain) OnError(ctx context.Context, rc *ErrorContext) {
	for _, i := range c.interceptors {
		i.OnError(ctx, rc)
	}
}
