package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/tools"
)

// Phase names the stage a running loop is in.
type Phase string

const (
	PhaseAwaitingModel       Phase = "awaiting_model"
	PhaseAwaitingToolResults Phase = "awaiting_tool_results"
	PhaseDone                Phase = "done"
)

// defaultMaxIterations bounds how many model round trips a single Run
// may make before giving up.
const defaultMaxIterations = 20

// ModelCaller is the subset of the client surface the loop needs. It is
// satisfied by llm.Client and by the interceptor pipeline.
type ModelCaller interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Result carries the outcome of a completed loop run.
type Result struct {
	// FinalText is the text of the model's last response, the one that
	// carried no tool calls.
	FinalText string

	// Iterations counts model round trips, including the final one.
	Iterations int

	// LastResponse is the response that ended the loop.
	LastResponse *llm.Response
}

// Loop drives a model through tool-calling turns: each response that
// requests tools has every call executed, the results pushed back into
// the conversation, and the model called again, until a response
// arrives with no tool calls or the iteration cap is hit.
type Loop struct {
	caller        ModelCaller
	registry      *tools.Registry
	maxIterations int
	logger        zerolog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxIterations overrides the model round-trip cap.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithLoopLogger sets the logger used for per-iteration progress.
func WithLoopLogger(logger zerolog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a tool loop over the given caller and registry.
func NewLoop(caller ModelCaller, registry *tools.Registry, opts ...LoopOption) *Loop {
	l := &Loop{
		caller:        caller,
		registry:      registry,
		maxIterations: defaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the loop against the given conversation state. The
// request template supplies model, system prompt and sampling options;
// its message list and tools are replaced with the state's history and
// the registry's specs on every iteration. On success the state holds
// the full history including tool results, and the returned Result
// carries the final text.
//
// All tool calls of a turn are resolved before the model is called
// again; a tool failure aborts the run with no results pushed.
func (l *Loop) Run(ctx context.Context, state *State, template *llm.Request) (*Result, error) {
	runID := uuid.New().String()
	log := l.logger.With().Str("run_id", runID).Str("model", template.Model).Logger()

	phase := PhaseAwaitingModel
	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		req := &llm.Request{
			Model:       template.Model,
			Messages:    state.Messages(),
			System:      firstNonEmpty(state.System(), template.System),
			Tools:       l.registry.Specs(),
			MaxTokens:   template.MaxTokens,
			Temperature: template.Temperature,
		}

		log.Debug().Int("iteration", iteration).Str("phase", string(phase)).
			Int("messages", len(req.Messages)).Msg("calling model")

		resp, err := l.caller.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		state.ApplyResponse(resp)

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			phase = PhaseDone
			log.Debug().Int("iteration", iteration).Str("phase", string(phase)).
				Msg("model produced final answer")
			return &Result{
				FinalText:    resp.Text(),
				Iterations:   iteration,
				LastResponse: resp,
			}, nil
		}

		phase = PhaseAwaitingToolResults
		log.Debug().Int("iteration", iteration).Str("phase", string(phase)).
			Int("tool_calls", len(calls)).Msg("executing tool calls")

		results, err := l.registry.ExecuteAll(ctx, calls)
		if err != nil {
			return nil, err
		}
		state.PushToolResults(results)
		phase = PhaseAwaitingModel
	}

	return nil, llm.NewToolError(
		fmt.Sprintf("tool loop exceeded maximum iterations (%d)", l.maxIterations), nil)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
