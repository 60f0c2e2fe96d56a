package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/tools"
)

func lookupRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(zerolog.Nop())
	reg.Register(llm.ToolSpec{
		Name:        "lookup",
		Description: "looks up a value by key",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{"type": "string"},
			},
		},
	}, func(_ context.Context, args json.RawMessage) (any, error) {
		var in struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return map[string]string{"value": "stored:" + in.Key}, nil
	})
	return reg
}

func toolUseResponse(calls ...llm.ToolUseBlock) *llm.Response {
	resp := &llm.Response{StopReason: llm.StopReasonToolUse}
	for _, call := range calls {
		c := call
		resp.Content = append(resp.Content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: &c,
		})
	}
	return resp
}

func TestLoopTerminatesAfterToolTurn(t *testing.T) {
	client := llm.NewScriptedClient().
		QueueResponse(toolUseResponse(llm.ToolUseBlock{
			ID:        "call_1",
			Name:      "lookup",
			Arguments: `{"key":"alpha"}`,
		})).
		QueueText("the value is stored:alpha")

	loop := NewLoop(client, lookupRegistry(t))
	state := NewState().WithSystem("be concise").PushUser("what is alpha?")

	result, err := loop.Run(context.Background(), state, &llm.Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FinalText != "the value is stored:alpha" {
		t.Errorf("final text = %q", result.FinalText)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}

	reqs := client.Requests()
	if len(reqs) != 2 {
		t.Fatalf("model calls = %d, want 2", len(reqs))
	}
	if len(reqs[0].Tools) != 1 || reqs[0].Tools[0].Name != "lookup" {
		t.Errorf("first request tools = %+v", reqs[0].Tools)
	}
	if reqs[0].System != "be concise" {
		t.Errorf("system prompt = %q", reqs[0].System)
	}

	// Second call must carry the assistant tool-use turn and the tool
	// result before the model is consulted again.
	second := reqs[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	if second[1].Role != llm.RoleAssistant {
		t.Errorf("message 1 role = %q", second[1].Role)
	}
	if second[2].Role != llm.RoleTool {
		t.Errorf("message 2 role = %q", second[2].Role)
	}
	tr := second[2].Content[0].ToolResult
	if tr == nil || tr.ID != "call_1" {
		t.Fatalf("tool result = %+v", tr)
	}
	if !strings.Contains(tr.Content, "stored:alpha") {
		t.Errorf("tool result content = %q", tr.Content)
	}

	// History ends with the final assistant answer.
	if state.LastText() != "the value is stored:alpha" {
		t.Errorf("state last text = %q", state.LastText())
	}
}

func TestLoopResolvesAllCallsBeforeNextModelCall(t *testing.T) {
	client := llm.NewScriptedClient().
		QueueResponse(toolUseResponse(
			llm.ToolUseBlock{ID: "call_a", Name: "lookup", Arguments: `{"key":"a"}`},
			llm.ToolUseBlock{ID: "call_b", Name: "lookup", Arguments: `{"key":"b"}`},
		)).
		QueueText("done")

	loop := NewLoop(client, lookupRegistry(t))
	state := NewState().PushUser("look up a and b")

	if _, err := loop.Run(context.Background(), state, &llm.Request{Model: "test-model"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reqs := client.Requests()
	if len(reqs) != 2 {
		t.Fatalf("model calls = %d, want 2", len(reqs))
	}
	toolMsg := reqs[1].Messages[2]
	if got := len(toolMsg.Content); got != 2 {
		t.Fatalf("tool results in one message = %d, want 2", got)
	}
	if toolMsg.Content[0].ToolResult.ID != "call_a" ||
		toolMsg.Content[1].ToolResult.ID != "call_b" {
		t.Errorf("tool result order = %q, %q",
			toolMsg.Content[0].ToolResult.ID,
			toolMsg.Content[1].ToolResult.ID)
	}
}

func TestLoopToolFailureAbortsRun(t *testing.T) {
	reg := tools.NewRegistry(zerolog.Nop())
	boom := errors.New("backend unavailable")
	reg.Register(llm.ToolSpec{Name: "failing", Schema: map[string]any{"type": "object"}},
		func(context.Context, json.RawMessage) (any, error) {
			return nil, boom
		})

	client := llm.NewScriptedClient().
		QueueResponse(toolUseResponse(llm.ToolUseBlock{ID: "call_1", Name: "failing", Arguments: `{}`})).
		QueueText("never reached")

	loop := NewLoop(client, reg)
	state := NewState().PushUser("try it")

	_, err := loop.Run(context.Background(), state, &llm.Request{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error")
	}
	if llm.PhaseOf(err) != llm.PhaseTool {
		t.Errorf("phase = %q, want tool", llm.PhaseOf(err))
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause not preserved: %v", err)
	}
	if got := len(client.Requests()); got != 1 {
		t.Errorf("model calls after tool failure = %d, want 1", got)
	}
}

func TestLoopIterationCap(t *testing.T) {
	client := llm.NewScriptedClient()
	for i := 0; i < 5; i++ {
		client.QueueResponse(toolUseResponse(llm.ToolUseBlock{
			ID: "call_x", Name: "lookup", Arguments: `{"key":"x"}`,
		}))
	}

	loop := NewLoop(client, lookupRegistry(t), WithMaxIterations(3))
	state := NewState().PushUser("loop forever")

	_, err := loop.Run(context.Background(), state, &llm.Request{Model: "test-model"})
	if err == nil {
		t.Fatal("expected iteration cap error")
	}
	if !strings.Contains(err.Error(), "maximum iterations") {
		t.Errorf("error = %v", err)
	}
	if got := len(client.Requests()); got != 3 {
		t.Errorf("model calls = %d, want 3", got)
	}
}

func TestLoopModelErrorPropagates(t *testing.T) {
	client := llm.NewScriptedClient().
		QueueError(llm.NewRateLimitError("slow down", nil, nil))

	loop := NewLoop(client, lookupRegistry(t))
	state := NewState().PushUser("hello")

	_, err := loop.Run(context.Background(), state, &llm.Request{Model: "test-model"})
	if !llm.IsRateLimitError(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}
