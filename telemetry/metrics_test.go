package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ergokit/ergokit/llm"
)

func int64Ptr(v int64) *int64 { return &v }

func TestMetricsInterceptorCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsInterceptor(reg)
	ctx := context.Background()

	if err := m.AfterResponse(ctx, &llm.ResponseContext{
		Operation:    "chat",
		Model:        "test-model",
		Duration:     120 * time.Millisecond,
		InputTokens:  int64Ptr(10),
		OutputTokens: int64Ptr(25),
	}); err != nil {
		t.Fatalf("AfterResponse: %v", err)
	}

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("chat", "test-model", "success"))
	if got != 1 {
		t.Errorf("requests_total success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tokensTotal.WithLabelValues("test-model", "input")); got != 10 {
		t.Errorf("input tokens = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.tokensTotal.WithLabelValues("test-model", "output")); got != 25 {
		t.Errorf("output tokens = %v, want 25", got)
	}
}

func TestMetricsInterceptorCountsErrorsByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsInterceptor(reg)

	m.OnError(context.Background(), &llm.ErrorContext{
		Operation: "chat",
		Model:     "test-model",
		Err:       llm.NewRateLimitError("slow down", nil, nil),
	})

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("chat", "test-model", "rate_limit"))
	if got != 1 {
		t.Errorf("requests_total rate_limit = %v, want 1", got)
	}
}

func TestMetricsInterceptorCountsStreamChunks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsInterceptor(reg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.OnStreamChunk(ctx, &llm.StreamChunkContext{
			Operation: "chat", Model: "test-model", ChunkIndex: i,
		}); err != nil {
			t.Fatalf("OnStreamChunk: %v", err)
		}
	}
	if err := m.OnStreamEnd(ctx, &llm.StreamEndContext{
		Operation: "chat", Model: "test-model", TotalChunks: 3,
		Duration: time.Second, OutputTokens: int64Ptr(7),
	}); err != nil {
		t.Fatalf("OnStreamEnd: %v", err)
	}

	if got := testutil.ToFloat64(m.streamChunks.WithLabelValues("test-model")); got != 3 {
		t.Errorf("stream chunks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("chat", "test-model", "success")); got != 1 {
		t.Errorf("requests_total success = %v, want 1", got)
	}
}
