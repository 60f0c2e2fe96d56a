package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/ergokit/ergokit/llm"
)

const defaultMaxTokens = 4096

// Client implements llm.Client against Anthropic's Messages API.
type Client struct {
	client *anthropic.Client
	model  string
	logger zerolog.Logger
}

// New creates an Anthropic-backed client. model is the default used when
// a request does not name one.
func New(apiKey, model string, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: &client,
		model:  model,
		logger: logger,
	}, nil
}

func (c *Client) buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return anthropic.MessageNewParams{}, llm.NewInvalidRequestError("model is required", nil)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toMessageParams(req.Messages),
		Tools:     toToolParams(req.Tools),
	}
	if req.System != "" {
		// cache_control on the system block caches tools, system, and
		// messages up to this point for repeated requests.
		params.System = []anthropic.TextBlockParam{
			{Text: req.System, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0, len(message.Content))
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: block.Text,
			})
		case anthropic.ToolUseBlock:
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: rawArguments(block.Input),
				},
			})
		}
	}

	usage := &llm.Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	if message.Usage.CacheReadInputTokens > 0 {
		c.logger.Debug().
			Int64("input_tokens", message.Usage.InputTokens).
			Int64("cache_read_tokens", message.Usage.CacheReadInputTokens).
			Msg("prompt cache hit")
	}

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: fromStopReason(message.StopReason),
	}, nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	return newStream(c.client.Messages.NewStreaming(ctx, params)), nil
}

// convertError maps Anthropic API errors onto the neutral error taxonomy.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("anthropic api error", false, err)
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return llm.NewRateLimitError("anthropic rate limit", retryAfterOf(apiErr), err)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeInvalidRequest,
			Message:    "anthropic invalid request",
			StatusCode: apiErr.StatusCode,
			Cause:      err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable,
		529: // Anthropic's overloaded status
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    "anthropic server error",
			Retryable:  true,
			StatusCode: apiErr.StatusCode,
			Cause:      err,
		}
	default:
		return &llm.Error{
			Phase:      llm.PhaseTransport,
			Type:       llm.ErrorTypeProvider,
			Message:    "anthropic api error",
			StatusCode: apiErr.StatusCode,
			Cause:      err,
		}
	}
}

func retryAfterOf(apiErr *anthropic.Error) *time.Duration {
	if apiErr.Response == nil {
		return nil
	}
	header := apiErr.Response.Header.Get("Retry-After")
	if header == "" {
		return nil
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return nil
	}
	d := time.Duration(seconds) * time.Second
	return &d
}
