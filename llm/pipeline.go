package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Pipeline drives a call through the interceptor hooks and middleware
// chain and into a transport Client. A Pipeline is safe for concurrent
// use once constructed.
type Pipeline struct {
	transport    Client
	interceptors *InterceptorChain
	middleware   *MiddlewareChain
	log          zerolog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithInterceptors sets the interceptor chain.
func WithInterceptors(c *InterceptorChain) PipelineOption {
	return func(p *Pipeline) { p.interceptors = c }
}

// WithMiddleware sets the middleware chain.
func WithMiddleware(c *MiddlewareChain) PipelineOption {
	return func(p *Pipeline) { p.middleware = c }
}

// WithPipelineLogger sets the logger used for pipeline diagnostics.
func WithPipelineLogger(log zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a pipeline around the given transport.
func NewPipeline(transport Client, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		transport:    transport,
		interceptors: NewInterceptorChain(),
		middleware:   NewMiddlewareChain(),
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interceptors returns the pipeline's interceptor chain.
func (p *Pipeline) Interceptors() *InterceptorChain { return p.interceptors }

// Middleware returns the pipeline's middleware chain.
func (p *Pipeline) Middleware() *MiddlewareChain { return p.middleware }

// Complete makes a Pipeline usable anywhere a Client is: a pipeline is
// itself a transport with hooks attached.
func (p *Pipeline) Complete(ctx context.Context, req *Request) (*Response, error) {
	return p.Execute(ctx, req)
}

// Stream is the streaming counterpart of Complete.
func (p *Pipeline) Stream(ctx context.Context, req *Request) (Stream, error) {
	return p.ExecuteStream(ctx, req)
}

const chatOperation = "chat"

// fail fans the error out to every OnError hook and returns it. This is
// the single funnel for all failure paths so that each failing call
// produces exactly one OnError round.
func (p *Pipeline) fail(ctx context.Context, op, model, requestJSON string, metadata map[string]string, start time.Time, err error) error {
	var d time.Duration
	if !start.IsZero() {
		d = time.Since(start)
	}
	p.interceptors.OnError(ctx, &ErrorContext{
		Operation:   op,
		Model:       model,
		RequestJSON: requestJSON,
		Err:         err,
		Duration:    d,
		Metadata:    metadata,
	})
	return err
}

// wrapChainError tags a middleware-chain failure. An error that already
// carries a non-transport phase keeps it, so a middleware that vetoes a
// request surfaces as a request abort rather than a transport failure;
// everything else is wrapped as transport with retry metadata preserved.
func wrapChainError(err error) *Error {
	if llmErr := asError(err); llmErr != nil && llmErr.Phase != "" && llmErr.Phase != PhaseTransport {
		return llmErr
	}
	return NewTransportError("executing request", err)
}

// Execute runs a non-streaming call: serialize the request, fan out
// BeforeRequest, run the middleware chain around the transport, then fan
// out AfterResponse. Any failure is reported through OnError exactly
// once and returned as a phase-tagged *Error.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Response, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		werr := &Error{Phase: PhaseRequest, Type: ErrorTypeInvalidRequest, Message: "marshaling request", Cause: err}
		return nil, p.fail(ctx, chatOperation, req.Model, "", nil, time.Time{}, werr)
	}

	metadata := make(map[string]string)
	rc := &RequestContext{
		Operation:   chatOperation,
		Model:       req.Model,
		RequestJSON: string(reqJSON),
		Metadata:    metadata,
	}
	if err := p.interceptors.BeforeRequest(ctx, rc); err != nil {
		werr := NewAbortError("interceptor rejected request", err)
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, time.Time{}, werr)
	}

	start := time.Now()
	mreq := &MiddlewareRequest{
		Operation: chatOperation,
		Model:     req.Model,
		BodyJSON:  rc.RequestJSON,
		Metadata:  metadata,
	}
	mresp, err := p.middleware.Execute(ctx, mreq, p.completeExecutor)
	if err != nil {
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, start, wrapChainError(err))
	}

	var resp Response
	if err := json.Unmarshal([]byte(mresp.BodyJSON), &resp); err != nil {
		werr := NewPostProcessError("decoding response", err)
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, start, werr)
	}

	respCtx := &ResponseContext{
		Operation:    chatOperation,
		Model:        req.Model,
		RequestJSON:  rc.RequestJSON,
		ResponseJSON: mresp.BodyJSON,
		Duration:     mresp.Duration,
		InputTokens:  mresp.InputTokens,
		OutputTokens: mresp.OutputTokens,
		Metadata:     metadata,
	}
	if err := p.interceptors.AfterResponse(ctx, respCtx); err != nil {
		// The response was already fetched but an interceptor rejected
		// it, so the caller never sees it.
		werr := NewPostProcessError("interceptor rejected response", err)
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, start, werr)
	}

	p.log.Debug().
		Str("model", req.Model).
		Dur("duration", mresp.Duration).
		Msg("completed request")
	return &resp, nil
}

// completeExecutor is the terminal stage of the middleware chain for
// non-streaming calls. It rehydrates the (possibly rewritten) request
// body and invokes the transport.
func (p *Pipeline) completeExecutor(ctx context.Context, mreq *MiddlewareRequest) (*MiddlewareResponse, error) {
	var req Request
	if err := json.Unmarshal([]byte(mreq.BodyJSON), &req); err != nil {
		return nil, NewInvalidRequestError("decoding rewritten request", err)
	}
	if mreq.Model != "" {
		req.Model = mreq.Model
	}

	start := time.Now()
	resp, err := p.transport.Complete(ctx, &req)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	respJSON, err := json.Marshal(resp)
	if err != nil {
		return nil, NewPostProcessError("encoding response", err)
	}

	mresp := &MiddlewareResponse{
		BodyJSON: string(respJSON),
		Duration: duration,
		Metadata: mreq.Metadata,
	}
	if resp.Usage != nil {
		in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
		mresp.InputTokens = &in
		mresp.OutputTokens = &out
	}
	return mresp, nil
}

// ExecuteStream runs a streaming call. BeforeRequest fans out before the
// stream is opened; the returned Stream reports every chunk through
// OnStreamChunk and, on natural completion, fires OnStreamEnd. Failures
// at any point, including mid-stream, go through OnError.
func (p *Pipeline) ExecuteStream(ctx context.Context, req *Request) (Stream, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		werr := &Error{Phase: PhaseRequest, Type: ErrorTypeInvalidRequest, Message: "marshaling request", Cause: err}
		return nil, p.fail(ctx, chatOperation, req.Model, "", nil, time.Time{}, werr)
	}

	metadata := make(map[string]string)
	rc := &RequestContext{
		Operation:   chatOperation,
		Model:       req.Model,
		RequestJSON: string(reqJSON),
		Metadata:    metadata,
	}
	if err := p.interceptors.BeforeRequest(ctx, rc); err != nil {
		werr := NewAbortError("interceptor rejected request", err)
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, time.Time{}, werr)
	}

	start := time.Now()
	inner, err := p.transport.Stream(ctx, req)
	if err != nil {
		werr := NewTransportError("opening stream", err)
		return nil, p.fail(ctx, chatOperation, req.Model, rc.RequestJSON, metadata, start, werr)
	}

	return &interceptedStream{
		inner:       inner,
		pipeline:    p,
		ctx:         ctx,
		model:       req.Model,
		requestJSON: rc.RequestJSON,
		metadata:    metadata,
		start:       start,
	}, nil
}
