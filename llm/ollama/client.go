package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/ergokit/ergokit/llm"
)

// Client implements llm.Client against a local or remote Ollama server.
type Client struct {
	client *api.Client
	model  string
}

// New creates an Ollama-backed client. An empty host falls back to the
// OLLAMA_HOST environment variable or the default localhost port; model
// is the default used when a request does not name one.
func New(host, model string) (*Client, error) {
	var client *api.Client
	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
	}

	return &Client{client: client, model: model}, nil
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

func (c *Client) buildRequest(req *llm.Request, streaming bool) (*api.ChatRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, llm.NewInvalidRequestError("model is required", nil)
	}

	messages := toMessages(req.Messages)
	if req.System != "" {
		messages = append([]api.Message{{Role: "system", Content: req.System}}, messages...)
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &streaming,
		Options:  make(map[string]any),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	return chatReq, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	var chatResp api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0, 1+len(chatResp.Message.ToolCalls))
	if chatResp.Message.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: chatResp.Message.Content,
		})
	}
	for i, toolCall := range chatResp.Message.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromToolCall(toolCall, i),
		})
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.PromptEvalCount),
			OutputTokens: int64(chatResp.EvalCount),
		},
		StopReason: fromDoneReason(chatResp.DoneReason, len(chatResp.Message.ToolCalls) > 0),
	}, nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, c.client, chatReq), nil
}

// convertError maps Ollama API errors onto the neutral error taxonomy.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		return llm.NewProviderError("ollama request failed", false, err)
	}

	switch statusErr.StatusCode {
	case http.StatusTooManyRequests:
		return llm.NewRateLimitError("ollama rate limit", nil, err)
	case http.StatusBadRequest, http.StatusNotFound:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeInvalidRequest,
			Message:    "ollama invalid request: " + statusErr.ErrorMessage,
			StatusCode: statusErr.StatusCode,
			Cause:      err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    "ollama server error: " + statusErr.ErrorMessage,
			Retryable:  true,
			StatusCode: statusErr.StatusCode,
			Cause:      err,
		}
	default:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    "ollama error: " + statusErr.ErrorMessage,
			StatusCode: statusErr.StatusCode,
			Cause:      err,
		}
	}
}
