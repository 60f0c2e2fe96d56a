package ergokit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/conversation"
	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/tools"
)

// Client is the top-level façade: a provider transport wrapped in the
// interceptor and middleware pipeline, with defaults for building
// requests and a tool registry for sessions.
type Client struct {
	transport    llm.Client
	model        string
	interceptors *llm.InterceptorChain
	middleware   *llm.MiddlewareChain
	registry     *tools.Registry
	logger       zerolog.Logger
	maxTokens    int64
	temperature  *float64

	pipeline *llm.Pipeline
}

// New creates a client over a provider transport. Options register
// interceptors, middleware, tools, and request defaults.
func New(transport llm.Client, model string, opts ...Option) *Client {
	c := &Client{
		transport:    transport,
		model:        model,
		interceptors: llm.NewInterceptorChain(),
		middleware:   llm.NewMiddlewareChain(),
		logger:       zerolog.Nop(),
		maxTokens:    4096,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = tools.NewRegistry(c.logger)
	}
	c.pipeline = llm.NewPipeline(transport,
		llm.WithInterceptors(c.interceptors),
		llm.WithMiddleware(c.middleware),
		llm.WithPipelineLogger(c.logger),
	)
	return c
}

// Tools returns the client's tool registry for registration.
func (c *Client) Tools() *tools.Registry {
	return c.registry
}

// Complete sends a single user prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Do(ctx, c.buildRequest(
		[]llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)}, ""))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Do sends a full request through the pipeline. Zero-valued Model,
// MaxTokens, and Temperature fields are filled from the client defaults.
func (c *Client) Do(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.applyDefaults(req)
	return c.pipeline.Execute(ctx, req)
}

// Stream sends a request and returns an intercepted stream of chunks.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	c.applyDefaults(req)
	return c.pipeline.ExecuteStream(ctx, req)
}

// StreamText streams a single user prompt.
func (c *Client) StreamText(ctx context.Context, prompt string) (llm.Stream, error) {
	return c.Stream(ctx, c.buildRequest(
		[]llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)}, ""))
}

// Session is a multi-turn conversation bound to a client. Each Send runs
// the tool loop: tool calls requested by the model are executed against
// the client's registry and fed back until a final answer arrives.
type Session struct {
	id     string
	client *Client
	state  *conversation.State
	loop   *conversation.Loop
}

// NewSession creates a conversation session.
func (c *Client) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		client: c,
		state:  conversation.NewState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.New().String()
	}
	s.loop = conversation.NewLoop(c.pipeline, c.registry,
		conversation.WithLoopLogger(c.logger))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns the session's message history.
func (s *Session) History() []llm.Message {
	return s.state.Messages()
}

// Send adds a user message and drives the tool loop to a final answer.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.state.PushUser(text)
	result, err := s.loop.Run(ctx, s.state, s.client.buildRequest(nil, s.state.System()))
	if err != nil {
		return "", err
	}
	return result.FinalText, nil
}

func (c *Client) buildRequest(msgs []llm.Message, system string) *llm.Request {
	return &llm.Request{
		Model:       c.model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
}

func (c *Client) applyDefaults(req *llm.Request) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	if req.Temperature == nil {
		req.Temperature = c.temperature
	}
}
