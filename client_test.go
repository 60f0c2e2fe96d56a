package ergokit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
	"github.com/ergokit/ergokit/tools"
)

func TestClientComplete(t *testing.T) {
	transport := llm.NewScriptedClient().QueueText("4")
	client := New(transport, "test-model")

	got, err := client.Complete(context.Background(), "what is 2+2?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "4" {
		t.Errorf("answer = %q", got)
	}

	reqs := transport.Requests()
	if len(reqs) != 1 {
		t.Fatalf("transport calls = %d", len(reqs))
	}
	if reqs[0].Model != "test-model" {
		t.Errorf("model = %q", reqs[0].Model)
	}
	if reqs[0].MaxTokens != 4096 {
		t.Errorf("default max tokens = %d", reqs[0].MaxTokens)
	}
}

func TestClientDoFillsDefaultsOnly(t *testing.T) {
	transport := llm.NewScriptedClient().QueueText("ok")
	client := New(transport, "default-model", WithMaxTokens(100), WithTemperature(0.2))

	_, err := client.Do(context.Background(), &llm.Request{
		Model:     "override-model",
		Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
		MaxTokens: 5,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	req := transport.Requests()[0]
	if req.Model != "override-model" {
		t.Errorf("model = %q, explicit value should win", req.Model)
	}
	if req.MaxTokens != 5 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	if req.Temperature == nil || *req.Temperature != 0.2 {
		t.Errorf("temperature default not applied: %v", req.Temperature)
	}
}

func TestClientInterceptorAndMiddlewareRun(t *testing.T) {
	transport := llm.NewScriptedClient().QueueText("ok")

	var order []string
	mw := llm.MiddlewareFunc(func(ctx context.Context, req *llm.MiddlewareRequest, next *llm.Next) (*llm.MiddlewareResponse, error) {
		order = append(order, "middleware")
		return next.Run(ctx, req)
	})
	icpt := &journalInterceptor{order: &order}

	client := New(transport, "test-model", WithInterceptor(icpt), WithMiddleware(mw))
	if _, err := client.Complete(context.Background(), "hi"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	want := []string{"before", "middleware", "after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

type journalInterceptor struct {
	llm.BaseInterceptor
	order *[]string
}

func (j *journalInterceptor) BeforeRequest(context.Context, *llm.RequestContext) error {
	*j.order = append(*j.order, "before")
	return nil
}

func (j *journalInterceptor) AfterResponse(context.Context, *llm.ResponseContext) error {
	*j.order = append(*j.order, "after")
	return nil
}

func TestSessionRunsToolLoop(t *testing.T) {
	transport := llm.NewScriptedClient().
		QueueResponse(&llm.Response{
			StopReason: llm.StopReasonToolUse,
			Content: []llm.ContentBlock{
				{Type: llm.ContentBlockTypeToolUse, ToolUse: &llm.ToolUseBlock{
					ID: "call_1", Name: "echo", Arguments: `{"text":"hi"}`,
				}},
			},
		}).
		QueueText("the tool said hi")

	registry := tools.NewRegistry(zerolog.Nop())
	registry.Register(llm.ToolSpec{Name: "echo", Schema: map[string]any{"type": "object"}},
		func(_ context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return in.Text, nil
		})

	client := New(transport, "test-model", WithTools(registry))
	session := client.NewSession(WithSystemPrompt("use your tools"))

	answer, err := session.Send(context.Background(), "say hi via the tool")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if answer != "the tool said hi" {
		t.Errorf("answer = %q", answer)
	}
	if session.ID() == "" {
		t.Error("session id not generated")
	}

	// History: user, assistant tool-use, tool result, final assistant.
	if got := len(session.History()); got != 4 {
		t.Errorf("history = %d messages, want 4", got)
	}
	if reqs := transport.Requests(); reqs[0].System != "use your tools" {
		t.Errorf("system = %q", reqs[0].System)
	}
}

func TestSessionResumeWithHistory(t *testing.T) {
	transport := llm.NewScriptedClient().QueueText("as I said, blue")
	client := New(transport, "test-model")

	history := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "my favorite color is blue"),
		llm.NewTextMessage(llm.RoleAssistant, "noted"),
	}
	session := client.NewSession(WithSessionID("resumed"), WithHistory(history))

	if _, err := session.Send(context.Background(), "what is my favorite color?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if session.ID() != "resumed" {
		t.Errorf("id = %q", session.ID())
	}
	req := transport.Requests()[0]
	if len(req.Messages) != 3 {
		t.Errorf("request messages = %d, want seeded history plus new turn", len(req.Messages))
	}
}
