package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
)

// LoggingInterceptor emits a structured log line for each stage of a
// model call.
type LoggingInterceptor struct {
	llm.BaseInterceptor
	logger zerolog.Logger
}

// NewLoggingInterceptor creates a logging interceptor.
func NewLoggingInterceptor(logger zerolog.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

func (l *LoggingInterceptor) BeforeRequest(_ context.Context, rctx *llm.RequestContext) error {
	l.logger.Debug().
		Str("operation", rctx.Operation).
		Str("model", rctx.Model).
		Int("request_bytes", len(rctx.RequestJSON)).
		Msg("model call started")
	return nil
}

func (l *LoggingInterceptor) AfterResponse(_ context.Context, rctx *llm.ResponseContext) error {
	evt := l.logger.Info().
		Str("operation", rctx.Operation).
		Str("model", rctx.Model).
		Dur("duration", rctx.Duration)
	if rctx.InputTokens != nil {
		evt = evt.Int64("input_tokens", *rctx.InputTokens)
	}
	if rctx.OutputTokens != nil {
		evt = evt.Int64("output_tokens", *rctx.OutputTokens)
	}
	evt.Msg("model call completed")
	return nil
}

func (l *LoggingInterceptor) OnStreamEnd(_ context.Context, ectx *llm.StreamEndContext) error {
	evt := l.logger.Info().
		Str("operation", ectx.Operation).
		Str("model", ectx.Model).
		Int("chunks", ectx.TotalChunks).
		Dur("duration", ectx.Duration)
	if ectx.OutputTokens != nil {
		evt = evt.Int64("output_tokens", *ectx.OutputTokens)
	}
	evt.Msg("stream completed")
	return nil
}

func (l *LoggingInterceptor) OnError(_ context.Context, ectx *llm.ErrorContext) {
	l.logger.Error().
		Err(ectx.Err).
		Str("operation", ectx.Operation).
		Str("model", ectx.Model).
		Str("phase", string(llm.PhaseOf(ectx.Err))).
		Dur("duration", ectx.Duration).
		Msg("model call failed")
}
