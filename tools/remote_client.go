package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRemoteCaller sends tool calls to a remote backend over HTTP as
// JSON. The server contract is POST {BaseURL}/tools/{toolName} with body
// {"args": {...}}; the response body is returned to the model unchanged.
type HTTPRemoteCaller struct {
	BaseURL    string
	HTTPClient *http.Client
	AuthToken  string
}

// NewHTTPRemoteCaller creates a caller with a 15 second request timeout.
func NewHTTPRemoteCaller(baseURL string) *HTTPRemoteCaller {
	return &HTTPRemoteCaller{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPRemoteCaller) Call(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("remote caller: base url is empty")
	}

	body, err := json.Marshal(map[string]json.RawMessage{"args": args})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/tools/%s", c.BaseURL, toolName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote tool call failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote tool response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote tool returned status %d: %s", resp.StatusCode, string(payload))
	}
	return payload, nil
}
