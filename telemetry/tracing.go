// Package telemetry provides observability plugins for the model call
// pipeline: OpenTelemetry tracing, Prometheus metrics, and structured
// request logging.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ergokit/ergokit/llm"
)

var tracer = otel.Tracer("ergokit.llm")

// TracingMiddleware wraps each model call in an OpenTelemetry client
// span. Attribute names follow the gen_ai semantic conventions.
type TracingMiddleware struct{}

// NewTracingMiddleware creates a tracing middleware.
func NewTracingMiddleware() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Handle(ctx context.Context, req *llm.MiddlewareRequest, next *llm.Next) (*llm.MiddlewareResponse, error) {
	ctx, span := tracer.Start(ctx, "llm."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", req.Operation),
			attribute.String("gen_ai.request.model", req.Model),
		),
	)
	defer span.End()

	resp, err := next.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(
			attribute.String("error.type", string(llm.TypeOf(err))),
			attribute.String("llm.error.phase", string(llm.PhaseOf(err))),
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.InputTokens != nil {
		span.SetAttributes(attribute.Int64("gen_ai.usage.input_tokens", *resp.InputTokens))
	}
	if resp.OutputTokens != nil {
		span.SetAttributes(attribute.Int64("gen_ai.usage.output_tokens", *resp.OutputTokens))
	}
	return resp, nil
}
