package ergokit

import (
	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/tools"
)

// Option configures a Client.
type Option func(*Client)

// WithInterceptor registers an interceptor. Interceptors run in
// registration order.
func WithInterceptor(i llm.Interceptor) Option {
	return func(c *Client) {
		c.interceptors.Add(i)
	}
}

// WithMiddleware registers a middleware. The first registered middleware
// is the outermost.
func WithMiddleware(m llm.Middleware) Option {
	return func(c *Client) {
		c.middleware.Use(m)
	}
}

// WithRetry wraps transport calls in the retry middleware. It composes
// with WithMiddleware registrations in the order given.
func WithRetry(cfg llm.RetryConfig) Option {
	return func(c *Client) {
		c.middleware.Use(llm.NewRetryMiddleware(cfg, c.logger))
	}
}

// WithLogger sets the client logger. Must appear before options that
// capture it, such as WithRetry.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTools sets the tool registry used by sessions.
func WithTools(registry *tools.Registry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithMaxTokens sets the default max_tokens for built requests.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSystemPrompt sets the session's system prompt.
func WithSystemPrompt(prompt string) SessionOption {
	return func(s *Session) {
		s.state.WithSystem(prompt)
	}
}

// WithSessionID sets the session identifier, e.g. to resume a persisted
// session. When absent a random identifier is generated.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithHistory seeds the session with an existing message history.
func WithHistory(msgs []llm.Message) SessionOption {
	return func(s *Session) {
		for _, msg := range msgs {
			s.state.PushMessage(msg)
		}
	}
}
