package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ergokit/ergokit/llm"
)

// installRecorder swaps in a recording tracer provider for the duration
// of a test.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	tracer = otel.Tracer("ergokit.llm")
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tracer = otel.Tracer("ergokit.llm")
	})
	return recorder
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddlewareRecordsSpan(t *testing.T) {
	recorder := installRecorder(t)
	mw := NewTracingMiddleware()

	in := int64(11)
	out := int64(42)
	chain := llm.NewMiddlewareChain(mw)
	resp, err := chain.Execute(context.Background(),
		&llm.MiddlewareRequest{Operation: "chat", Model: "test-model", BodyJSON: "{}"},
		func(ctx context.Context, req *llm.MiddlewareRequest) (*llm.MiddlewareResponse, error) {
			return &llm.MiddlewareResponse{BodyJSON: "{}", InputTokens: &in, OutputTokens: &out}, nil
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "llm.chat" {
		t.Errorf("span name = %q", span.Name())
	}
	if v, ok := attrValue(span, "gen_ai.request.model"); !ok || v.AsString() != "test-model" {
		t.Errorf("model attribute = %v", v)
	}
	if v, ok := attrValue(span, "gen_ai.usage.output_tokens"); !ok || v.AsInt64() != 42 {
		t.Errorf("output tokens attribute = %v", v)
	}
}

func TestTracingMiddlewareRecordsError(t *testing.T) {
	recorder := installRecorder(t)
	mw := NewTracingMiddleware()

	boom := llm.NewProviderError("backend down", true, errors.New("503"))
	chain := llm.NewMiddlewareChain(mw)
	_, err := chain.Execute(context.Background(),
		&llm.MiddlewareRequest{Operation: "chat", Model: "test-model", BodyJSON: "{}"},
		func(ctx context.Context, req *llm.MiddlewareRequest) (*llm.MiddlewareResponse, error) {
			return nil, boom
		})
	if err == nil {
		t.Fatal("expected error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v", span.Status())
	}
	if v, ok := attrValue(span, "error.type"); !ok || v.AsString() != "provider" {
		t.Errorf("error.type attribute = %v", v)
	}
}
