package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are
// supplied.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// RetryMiddleware retries failed calls with exponential backoff. Only
// errors marked retryable are retried; a provider-supplied retry-after
// hint overrides the computed backoff interval for that attempt.
type RetryMiddleware struct {
	cfg RetryConfig
	log zerolog.Logger
}

// NewRetryMiddleware creates a retry middleware with the given config.
func NewRetryMiddleware(cfg RetryConfig, log zerolog.Logger) *RetryMiddleware {
	if cfg.MaxRetries == 0 && cfg.InitialInterval == 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryMiddleware{cfg: cfg, log: log}
}

// hintedBackOff consults a provider retry-after hint before falling
// back to the wrapped policy. A hint applies to the next wait only.
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	if b.hint != nil {
		d := *b.hint
		b.hint = nil
		return d
	}
	return b.BackOff.NextBackOff()
}

func (m *RetryMiddleware) Handle(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.InitialInterval
	eb.MaxInterval = m.cfg.MaxInterval
	bo := &hintedBackOff{BackOff: eb}

	var resp *MiddlewareResponse
	attempt := 0
	operation := func() error {
		var err error
		resp, err = next.Run(ctx, req)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		bo.hint = ExtractRetryAfter(err)
		attempt++
		m.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("model", req.Model).
			Msg("retrying request")
		return err
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, m.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
