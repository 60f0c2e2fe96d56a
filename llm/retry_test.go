package llm

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

func fastRetryConfig(maxRetries uint64) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestRetryMiddlewareRetriesTransientFailures(t *testing.T) {
	attempts := 0
	exec := func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, NewProviderError("503", true, nil)
		}
		return &MiddlewareResponse{BodyJSON: "{}"}, nil
	}

	chain := NewMiddlewareChain(NewRetryMiddleware(fastRetryConfig(5), zerolog.Nop()))
	resp, err := chain.Execute(context.Background(), &MiddlewareRequest{Model: "m"}, exec)
	if err != nil {
		t.Fatalf("Execute failed after retries: %v", err)
	}
	if resp == nil {
		t.Fatal("no response after successful retry")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryMiddlewareDoesNotRetryPermanentFailures(t *testing.T) {
	attempts := 0
	exec := func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
		attempts++
		return nil, NewInvalidRequestError("bad payload", nil)
	}

	chain := NewMiddlewareChain(NewRetryMiddleware(fastRetryConfig(5), zerolog.Nop()))
	_, err := chain.Execute(context.Background(), &MiddlewareRequest{Model: "m"}, exec)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for a permanent failure", attempts)
	}
}

func TestRetryMiddlewareGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	exec := func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
		attempts++
		return nil, NewProviderError("503", true, nil)
	}

	chain := NewMiddlewareChain(NewRetryMiddleware(fastRetryConfig(2), zerolog.Nop()))
	_, err := chain.Execute(context.Background(), &MiddlewareRequest{Model: "m"}, exec)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want initial call plus 2 retries", attempts)
	}
	if !IsRetryableError(err) {
		t.Error("final error lost its classification")
	}
}

func TestRetryMiddlewareHonorsRetryAfterHint(t *testing.T) {
	hint := 50 * time.Millisecond
	attempts := 0
	exec := func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
		attempts++
		if attempts == 1 {
			return nil, NewRateLimitError("429", &hint, nil)
		}
		return &MiddlewareResponse{BodyJSON: "{}"}, nil
	}

	// InitialInterval is 1ms; a wait of at least the hint proves the
	// provider value drove the delay, not the configured backoff.
	chain := NewMiddlewareChain(NewRetryMiddleware(fastRetryConfig(3), zerolog.Nop()))
	start := time.Now()
	resp, err := chain.Execute(context.Background(), &MiddlewareRequest{Model: "m"}, exec)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp == nil {
		t.Fatal("no response after retry")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if elapsed < hint {
		t.Errorf("elapsed = %v, want at least the %v retry-after hint", elapsed, hint)
	}
}

func TestHintedBackOffAppliesHintOnce(t *testing.T) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Millisecond
	eb.MaxInterval = 2 * time.Millisecond
	eb.Reset()
	bo := &hintedBackOff{BackOff: eb}

	hint := 30 * time.Millisecond
	bo.hint = &hint
	if got := bo.NextBackOff(); got != hint {
		t.Errorf("first wait = %v, want the hint %v", got, hint)
	}
	if got := bo.NextBackOff(); got >= hint {
		t.Errorf("second wait = %v, hint should not persist", got)
	}
}

func TestRetryMiddlewareStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	exec := func(ctx context.Context, req *MiddlewareRequest) (*MiddlewareResponse, error) {
		attempts++
		cancel()
		return nil, NewProviderError("503", true, nil)
	}

	chain := NewMiddlewareChain(NewRetryMiddleware(fastRetryConfig(10), zerolog.Nop()))
	_, err := chain.Execute(ctx, &MiddlewareRequest{Model: "m"}, exec)
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts > 2 {
		t.Errorf("attempts = %d, want retries to stop after cancellation", attempts)
	}
}
