// Package tools provides a registry of named tool handlers that a model
// can invoke during a conversation, plus adapters for remote and MCP
// backed tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
)

// Handler executes one tool call. args is the raw argument payload from
// the model, passed through without interpretation; the returned value is
// marshaled to JSON and sent back as the tool result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Definition couples a tool's model-facing spec with its handler.
type Definition struct {
	Spec    llm.ToolSpec
	Handler Handler
}

// Registry maps tool names to definitions. Registration order is
// preserved so the specs sent to the model are stable across calls.
type Registry struct {
	defs   map[string]Definition
	order  []string
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		defs:   make(map[string]Definition),
		logger: logger.With().Str("component", "tool_registry").Logger(),
	}
}

// Register registers a tool. Re-registering a name replaces the previous
// definition but keeps its position.
func (r *Registry) Register(spec llm.ToolSpec, h Handler) {
	r.logger.Debug().Str("name", spec.Name).Msg("registering tool")
	if _, exists := r.defs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.defs[spec.Name] = Definition{Spec: spec, Handler: h}
}

// Specs returns the model-facing specs of all registered tools in
// registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.defs[name].Spec)
	}
	return specs
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Execute runs a single tool call and renders its result as a JSON
// string. Unknown tools and handler failures return a tool-phase error.
func (r *Registry) Execute(ctx context.Context, call llm.ToolUseBlock) (string, error) {
	def, ok := r.defs[call.Name]
	if !ok {
		r.logger.Error().Str("tool", call.Name).Msg("unknown tool requested")
		return "", llm.NewToolError(fmt.Sprintf("unknown tool: %s", call.Name), nil)
	}

	r.logger.Info().Str("tool", call.Name).Str("call_id", call.ID).Msg("executing tool")

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := def.Handler(ctx, args)
	if err != nil {
		r.logger.Warn().Str("tool", call.Name).Err(err).Msg("tool returned error")
		return "", llm.NewToolError(fmt.Sprintf("tool %s failed", call.Name), err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", llm.NewToolError(fmt.Sprintf("tool %s produced unencodable result", call.Name), err)
	}
	r.logger.Debug().Str("tool", call.Name).Int("result_bytes", len(out)).Msg("tool returned result")
	return string(out), nil
}

// ExecuteAll resolves every tool call of a model turn in response order.
// The first failure aborts the whole turn; no partial result set is
// returned.
func (r *Registry) ExecuteAll(ctx context.Context, calls []llm.ToolUseBlock) ([]llm.ToolResultBlock, error) {
	results := make([]llm.ToolResultBlock, 0, len(calls))
	for _, call := range calls {
		content, err := r.Execute(ctx, call)
		if err != nil {
			return nil, err
		}
		results = append(results, llm.ToolResultBlock{
			ID:      call.ID,
			Content: content,
		})
	}
	return results, nil
}

// RemoteCaller calls a tool hosted by a remote backend.
type RemoteCaller interface {
	Call(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error)
}

// RegisterRemote registers a tool whose implementation lives behind a
// RemoteCaller.
func (r *Registry) RegisterRemote(spec llm.ToolSpec, caller RemoteCaller) {
	r.Register(spec, func(ctx context.Context, args json.RawMessage) (any, error) {
		resp, err := caller.Call(ctx, spec.Name, args)
		if err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal(resp, &out); err != nil {
			// Non-JSON payloads pass through as a raw string.
			return string(resp), nil
		}
		return out, nil
	})
}
