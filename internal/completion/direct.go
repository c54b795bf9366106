package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"OreChat/internal/backend"
	"OreChat/internal/prompt"
)

// Direct issues a single non-streamed call and parses choices[0].message.content.
// It talks to the relay's OpenAI-compatible endpoint, which holds the provider
// credential; no credential is ever attached here.
type Direct struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewDirect creates a Direct client against the relay at baseURL
func NewDirect(baseURL, model string, httpClient *http.Client) *Direct {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Direct{
		endpoint:   strings.TrimRight(baseURL, "/") + "/v1/chat/completions",
		model:      model,
		httpClient: httpClient,
	}
}

// Submit sends the request and waits for the whole reply
func (d *Direct) Submit(ctx context.Context, req *prompt.Request) (*Result, error) {
	reqBody := backend.ChatCompletionRequest{
		Model:       d.model,
		Persona:     string(req.Persona),
		Messages:    req.Conversation(),
		Temperature: req.Sampling.Temperature,
		MaxTokens:   req.Sampling.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, failure(FailureTransport, 0, "failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure(FailureTransport, resp.StatusCode, "failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure(FailureStatus, resp.StatusCode, "API error: %s - %s", resp.Status, string(body))
	}

	var apiResp backend.ChatCompletionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, failure(FailureMalformed, resp.StatusCode, "failed to unmarshal response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, failure(FailureMalformed, resp.StatusCode, "response has no choices")
	}

	return &Result{Text: apiResp.Choices[0].Message.Content}, nil
}

var _ Client = (*Direct)(nil)
