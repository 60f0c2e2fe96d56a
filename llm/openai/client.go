package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ergokit/ergokit/llm"
)

// OpenAI does not expose retry-after headers through its error type, so
// rate limits fall back to a fixed wait.
const defaultRetryAfter = 60 * time.Second

// Client implements llm.Client against OpenAI's chat completion API.
type Client struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI-backed client. baseURL and organization are
// optional; model is the default used when a request does not name one.
func New(apiKey, baseURL, model, organization string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (c *Client) buildRequest(req *llm.Request) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return openai.ChatCompletionRequest{}, llm.NewInvalidRequestError("model is required", nil)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(req.Messages),
	}
	if req.System != "" {
		systemMsg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		}
		chatReq.Messages = append([]openai.ChatCompletionMessage{systemMsg}, chatReq.Messages...)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toTools(req.Tools)
		chatReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	return chatReq, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, llm.NewProviderError("no choices in response", false, nil)
	}

	choice := chatResp.Choices[0]
	content := make([]llm.ContentBlock, 0, 1+len(choice.Message.ToolCalls))
	if choice.Message.Content != "" {
		content = append(content, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: choice.Message.Content,
		})
	}
	for _, toolCall := range choice.Message.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromToolCall(toolCall),
		})
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
		},
		StopReason: fromFinishReason(choice.FinishReason),
	}, nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	return newStream(stream), nil
}

// convertError maps OpenAI API errors onto the neutral error taxonomy.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("openai api error", false, err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("openai rate limit: %s", apiErr.Message), &retryAfter, err)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeInvalidRequest,
			Message:    fmt.Sprintf("openai invalid request: %s", apiErr.Message),
			StatusCode: apiErr.HTTPStatusCode,
			Cause:      err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("openai server error: %s", apiErr.Message),
			Retryable:  true,
			StatusCode: apiErr.HTTPStatusCode,
			Cause:      err,
		}
	default:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("openai api error: %s", apiErr.Message),
			StatusCode: apiErr.HTTPStatusCode,
			Cause:      err,
		}
	}
}
