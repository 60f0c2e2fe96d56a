package llm

import (
	"context"
	"time"
)

// MiddlewareRequest is the request view handed to middleware. Middleware
// may rewrite BodyJSON or Model before passing the request on; the
// rewritten form is what the transport (and later middleware) sees.
type MiddlewareRequest struct {
	Operation string
	Model     string
	BodyJSON  string
	Metadata  map[string]string
}

// MiddlewareResponse is what a middleware chain produces. A middleware
// that short-circuits (never calls next) fabricates one of these itself;
// Duration and token counts are then whatever it chooses to report.
type MiddlewareResponse struct {
	BodyJSON     string
	Duration     time.Duration
	InputTokens  *int64
	OutputTokens *int64
	Metadata     map[string]string
}

// Middleware wraps request execution. Implementations decide whether to
// call next.Run; skipping it short-circuits everything downstream,
// including the transport. They may act on the request before and the
// response after.
type Middleware interface {
	Handle(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error)

func (f MiddlewareFunc) Handle(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
	return f(ctx, req, next)
}

// Executor is the terminal stage of a middleware chain, typically the
// transport call.
type Executor func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error)

// Next is the continuation handed to a middleware. Calling Run invokes
// the rest of the chain and finally the executor. A middleware may call
// Run zero times (short-circuit) or, for retry-style middleware, more
// than once; each Run walks the remaining chain from the same position.
type Next struct {
	chain    []Middleware
	index    int
	executor Executor
}

// Run executes the remaining middleware and then the executor.
func (n *Next) Run(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
	if n.index < len(n.chain) {
		m := n.chain[n.index]
		return m.Handle(ctx, req, &Next{chain: n.chain, index: n.index + 1, executor: n.executor})
	}
	return n.executor(ctx, req)
}

// MiddlewareChain holds middleware in registration order. The first
// registered middleware is outermost: it sees the request first and the
// response last.
type MiddlewareChain struct {
	middleware []Middleware
}

// NewMiddlewareChain creates a chain from the given middleware.
func NewMiddlewareChain(middleware ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middleware: middleware}
}

// Use appends a middleware to the chain.
func (c *MiddlewareChain) Use(m Middleware) {
	c.middleware = append(c.middleware, m)
}

// Len returns the number of registered middleware.
func (c *MiddlewareChain) Len() int {
	return len(c.middleware)
}

// Execute runs the request through the chain and into the executor. A
// fresh continuation is built per call, so chains are safe for concurrent
// use once registration is done.
func (c *MiddlewareChain) Execute(ctx context.Context, req *MiddlewareRequest, exec Executor) (*MiddlewareResponse, error) {
	next := &Next{chain: c.middleware, index: 0, executor: exec}
	return next.Run(ctx, req)
}
