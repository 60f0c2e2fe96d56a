package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPipelineExecuteEndToEnd(t *testing.T) {
	transport := NewScriptedClient().QueueText("4")
	var journal []string
	pipeline := NewPipeline(transport,
		WithInterceptors(NewInterceptorChain(&recordingInterceptor{name: "i", journal: &journal})),
	)

	req := &Request{
		Model:    "test-model",
		Messages: []Message{NewTextMessage(RoleUser, "what is 2+2?")},
	}
	resp, err := pipeline.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Text() != "4" {
		t.Errorf("response text = %q, want %q", resp.Text(), "4")
	}

	want := []string{"i:before", "i:after"}
	if len(journal) != len(want) || journal[0] != want[0] || journal[1] != want[1] {
		t.Errorf("journal = %v, want %v", journal, want)
	}
}

func TestPipelineBeforeRequestAbortSkipsTransport(t *testing.T) {
	transport := NewScriptedClient().QueueText("never delivered")
	var journal []string
	boom := errors.New("blocked")
	pipeline := NewPipeline(transport,
		WithInterceptors(NewInterceptorChain(
			&recordingInterceptor{name: "i", journal: &journal, beforeErr: boom},
		)),
	)

	_, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err == nil {
		t.Fatal("expected abort error")
	}
	if PhaseOf(err) != PhaseRequest {
		t.Errorf("phase = %q, want %q", PhaseOf(err), PhaseRequest)
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause not preserved: %v", err)
	}
	if len(transport.Requests()) != 0 {
		t.Error("transport was called despite request abort")
	}
	// OnError still fires for the aborting call.
	found := false
	for _, entry := range journal {
		if entry == "i:error" {
			found = true
		}
		if entry == "i:after" {
			t.Error("AfterResponse ran on an aborted call")
		}
	}
	if !found {
		t.Error("OnError did not fire on request abort")
	}
}

func TestPipelineTransportFailure(t *testing.T) {
	transport := NewScriptedClient().QueueError(NewProviderError("upstream down", true, nil))
	var journal []string
	pipeline := NewPipeline(transport,
		WithInterceptors(NewInterceptorChain(&recordingInterceptor{name: "i", journal: &journal})),
	)

	_, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if PhaseOf(err) != PhaseTransport {
		t.Errorf("phase = %q, want %q", PhaseOf(err), PhaseTransport)
	}
	if !IsRetryableError(err) {
		t.Error("retryable flag lost while wrapping transport error")
	}
	errorHooks := 0
	for _, entry := range journal {
		if entry == "i:error" {
			errorHooks++
		}
	}
	if errorHooks != 1 {
		t.Errorf("OnError fired %d times, want exactly once", errorHooks)
	}
}

func TestPipelineAfterResponseFailureDiscardsResponse(t *testing.T) {
	transport := NewScriptedClient().QueueText("fetched but rejected")
	boom := errors.New("policy violation")
	var journal []string
	pipeline := NewPipeline(transport,
		WithInterceptors(NewInterceptorChain(
			&recordingInterceptor{name: "i", journal: &journal, afterErr: boom},
		)),
	)

	resp, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err == nil {
		t.Fatal("expected postprocess error")
	}
	if resp != nil {
		t.Error("response returned despite AfterResponse failure")
	}
	if PhaseOf(err) != PhasePostProcess {
		t.Errorf("phase = %q, want %q", PhaseOf(err), PhasePostProcess)
	}
	if len(transport.Requests()) != 1 {
		t.Error("transport call count wrong; AfterResponse failures happen after the call")
	}
}

func TestPipelineMiddlewareWrapsTransport(t *testing.T) {
	transport := NewScriptedClient().QueueText("ok")
	mw := NewMiddlewareChain()
	var order []string
	mw.Use(MiddlewareFunc(func(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
		order = append(order, "mw:before")
		resp, err := next.Run(ctx, req)
		order = append(order, "mw:after")
		return resp, err
	}))
	pipeline := NewPipeline(transport, WithMiddleware(mw))

	resp, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Text() != "ok" {
		t.Errorf("text = %q", resp.Text())
	}
	if len(order) != 2 || order[0] != "mw:before" || order[1] != "mw:after" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestPipelineMiddlewareVetoKeepsRequestPhase(t *testing.T) {
	transport := NewScriptedClient().QueueText("never delivered")
	veto := MiddlewareFunc(func(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
		return nil, NewAbortError("request blocked by policy", nil)
	})
	pipeline := NewPipeline(transport, WithMiddleware(NewMiddlewareChain(veto)))

	_, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err == nil {
		t.Fatal("expected veto error")
	}
	if PhaseOf(err) != PhaseRequest {
		t.Errorf("phase = %q, want %q for a middleware veto", PhaseOf(err), PhaseRequest)
	}
	if TypeOf(err) != ErrorTypeAborted {
		t.Errorf("type = %q, want %q", TypeOf(err), ErrorTypeAborted)
	}
	if len(transport.Requests()) != 0 {
		t.Error("transport was called despite middleware veto")
	}
}

func TestPipelineMiddlewareShortCircuitSkipsTransport(t *testing.T) {
	transport := NewScriptedClient() // nothing queued; a call would fail
	mw := NewMiddlewareChain()
	mw.Use(MiddlewareFunc(func(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
		return &MiddlewareResponse{
			BodyJSON: `{"content":[{"type":"text","text":"from cache"}],"stop_reason":"end_turn"}`,
		}, nil
	}))
	pipeline := NewPipeline(transport, WithMiddleware(mw))

	resp, err := pipeline.Execute(context.Background(), &Request{Model: "m"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Text() != "from cache" {
		t.Errorf("text = %q, want short-circuited body", resp.Text())
	}
	if len(transport.Requests()) != 0 {
		t.Error("transport called despite middleware short-circuit")
	}
}

func TestPipelineMiddlewareModelRewriteReachesTransport(t *testing.T) {
	transport := NewScriptedClient().QueueText("ok")
	mw := NewMiddlewareChain()
	mw.Use(MiddlewareFunc(func(ctx context.Context, req *MiddlewareRequest, next *Next) (*MiddlewareResponse, error) {
		req.Model = "routed-model"
		return next.Run(ctx, req)
	}))
	pipeline := NewPipeline(transport, WithMiddleware(mw))

	if _, err := pipeline.Execute(context.Background(), &Request{Model: "requested-model"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	reqs := transport.Requests()
	if len(reqs) != 1 || reqs[0].Model != "routed-model" {
		t.Errorf("transport saw %+v, want routed-model", reqs)
	}
}

func TestPipelineExecuteStreamCollect(t *testing.T) {
	transport := NewScriptedClient().QueueTextStream("Hel", "lo ", "world")
	pipeline := NewPipeline(transport)

	stream, err := pipeline.ExecuteStream(context.Background(), &Request{Model: "m"})
	if err != nil {
		t.Fatalf("ExecuteStream failed: %v", err)
	}
	text, err := CollectContent(stream)
	if err != nil {
		t.Fatalf("CollectContent failed: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("collected %q, want %q", text, "Hello world")
	}
}

func TestPipelineUsagePropagatesToAfterResponse(t *testing.T) {
	transport := NewScriptedClient().QueueResponse(&Response{
		Content: []ContentBlock{{Type: ContentBlockTypeText, Text: "hi"}},
		Usage:   &Usage{InputTokens: 12, OutputTokens: 7},
	})
	var gotIn, gotOut int64
	capture := &usageCapture{in: &gotIn, out: &gotOut}
	pipeline := NewPipeline(transport, WithInterceptors(NewInterceptorChain(capture)))

	if _, err := pipeline.Execute(context.Background(), &Request{Model: "m"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotIn != 12 || gotOut != 7 {
		t.Errorf("usage = (%d, %d), want (12, 7)", gotIn, gotOut)
	}
	if !strings.Contains(capture.responseJSON, `"hi"`) {
		t.Errorf("ResponseJSON %q does not carry the response body", capture.responseJSON)
	}
}

type usageCapture struct {
	BaseInterceptor
	in, out      *int64
	responseJSON string
}

func (u *usageCapture) AfterResponse(_ context.Context, rc *ResponseContext) error {
	if rc.InputTokens != nil {
		*u.in = *rc.InputTokens
	}
	if rc.OutputTokens != nil {
		*u.out = *rc.OutputTokens
	}
	u.responseJSON = rc.ResponseJSON
	return nil
}
