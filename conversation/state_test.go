package conversation

import (
	"testing"

	"github.com/ergokit/ergokit/llm"
)

func TestStateBuildRequest(t *testing.T) {
	state := NewState().
		WithSystem("you are terse").
		PushUser("hi").
		PushAssistant("hello")

	req := state.BuildRequest("test-model", nil, 512)
	if req.Model != "test-model" {
		t.Errorf("model = %q", req.Model)
	}
	if req.System != "you are terse" {
		t.Errorf("system = %q", req.System)
	}
	if req.MaxTokens != 512 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != llm.RoleUser || req.Messages[1].Role != llm.RoleAssistant {
		t.Errorf("roles = %q, %q", req.Messages[0].Role, req.Messages[1].Role)
	}
}

func TestStateApplyResponsePreservesToolUse(t *testing.T) {
	resp := &llm.Response{
		Content: []llm.ContentBlock{
			{Type: llm.ContentBlockTypeText, Text: "let me check"},
			{Type: llm.ContentBlockTypeToolUse, ToolUse: &llm.ToolUseBlock{
				ID: "call_1", Name: "lookup", Arguments: `{"key":"k"}`,
			}},
		},
		StopReason: llm.StopReasonToolUse,
	}

	state := NewState().PushUser("check k")
	state.ApplyResponse(resp)

	msgs := state.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	last := msgs[1]
	if last.Role != llm.RoleAssistant {
		t.Errorf("role = %q", last.Role)
	}
	if len(last.Content) != 2 || last.Content[1].ToolUse == nil {
		t.Fatalf("content = %+v", last.Content)
	}
	if last.Content[1].ToolUse.ID != "call_1" {
		t.Errorf("tool use id = %q", last.Content[1].ToolUse.ID)
	}
}

func TestStateLastText(t *testing.T) {
	state := NewState()
	if state.LastText() != "" {
		t.Errorf("empty state last text = %q", state.LastText())
	}

	state.PushUser("question")
	state.PushAssistant("first answer")
	state.PushToolResults([]llm.ToolResultBlock{{ID: "call_1", Content: `{"ok":true}`}})
	if state.LastText() != "first answer" {
		t.Errorf("last text = %q, want assistant text past the tool message", state.LastText())
	}

	state.PushAssistant("second answer")
	if state.LastText() != "second answer" {
		t.Errorf("last text = %q", state.LastText())
	}
}
