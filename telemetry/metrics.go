package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ergokit/ergokit/llm"
)

// MetricsInterceptor records Prometheus metrics for every model call:
// request counts by outcome, latency, token usage, and stream chunk
// counts. It observes only and never fails a call.
type MetricsInterceptor struct {
	llm.BaseInterceptor

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	streamChunks    *prometheus.CounterVec
}

// NewMetricsInterceptor creates a metrics interceptor whose collectors
// are registered on reg. Pass prometheus.DefaultRegisterer for the
// process-wide registry.
func NewMetricsInterceptor(reg prometheus.Registerer) *MetricsInterceptor {
	factory := promauto.With(reg)
	return &MetricsInterceptor{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total model calls by operation, model, and outcome",
		}, []string{"operation", "model", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Model call duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Provider-reported token usage by direction",
		}, []string{"model", "direction"}),
		streamChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_stream_chunks_total",
			Help: "Stream chunks delivered to consumers",
		}, []string{"model"}),
	}
}

func (m *MetricsInterceptor) AfterResponse(_ context.Context, rctx *llm.ResponseContext) error {
	m.requestsTotal.WithLabelValues(rctx.Operation, rctx.Model, "success").Inc()
	m.requestDuration.WithLabelValues(rctx.Operation, rctx.Model).Observe(rctx.Duration.Seconds())
	m.recordTokens(rctx.Model, rctx.InputTokens, rctx.OutputTokens)
	return nil
}

func (m *MetricsInterceptor) OnStreamChunk(_ context.Context, cctx *llm.StreamChunkContext) error {
	m.streamChunks.WithLabelValues(cctx.Model).Inc()
	return nil
}

func (m *MetricsInterceptor) OnStreamEnd(_ context.Context, ectx *llm.StreamEndContext) error {
	m.requestsTotal.WithLabelValues(ectx.Operation, ectx.Model, "success").Inc()
	m.requestDuration.WithLabelValues(ectx.Operation, ectx.Model).Observe(ectx.Duration.Seconds())
	m.recordTokens(ectx.Model, ectx.InputTokens, ectx.OutputTokens)
	return nil
}

func (m *MetricsInterceptor) OnError(_ context.Context, ectx *llm.ErrorContext) {
	m.requestsTotal.WithLabelValues(ectx.Operation, ectx.Model, string(llm.TypeOf(ectx.Err))).Inc()
}

func (m *MetricsInterceptor) recordTokens(model string, input, output *int64) {
	if input != nil {
		m.tokensTotal.WithLabelValues(model, "input").Add(float64(*input))
	}
	if output != nil {
		m.tokensTotal.WithLabelValues(model, "output").Add(float64(*output))
	}
}
