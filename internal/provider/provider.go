package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"OreChat/internal/backend"
	"OreChat/internal/prompt"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "mixtral-8x7b-32768"
)

// ErrMissingAPIKey is returned when no provider credential is configured
var ErrMissingAPIKey = errors.New("provider API key not set")

// Config holds the upstream endpoint and credential
type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// Completion is a whole reply from the provider
type Completion struct {
	Text         string
	FinishReason string
	Usage        backend.Usage
}

// Client calls an OpenAI-compatible chat completion API
type Client struct {
	client   *openai.Client
	model    string
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	duration metric.Float64Histogram
}

// New creates a provider client. The API key is mandatory.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	meter := otel.Meter("orechat/provider")
	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	logger.Info("initializing provider client", "base_url", cfg.BaseURL, "model", cfg.Model)
	return &Client{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		logger:   logger,
		tracer:   otel.Tracer("orechat/provider"),
		meter:    meter,
		duration: duration,
	}, nil
}

// Model returns the upstream model name
func (c *Client) Model() string {
	return c.model
}

func (c *Client) chatRequest(req *prompt.Request) openai.ChatCompletionRequest {
	msgs := req.Messages()
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    out,
		Temperature: req.Sampling.Temperature,
		MaxTokens:   req.Sampling.MaxTokens,
	}
}

// Complete requests a whole reply
func (c *Client) Complete(ctx context.Context, req *prompt.Request) (*Completion, error) {
	ctx, span := c.tracer.Start(ctx, "groq_api_call", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.String("llm.persona", string(req.Persona)),
		attribute.Bool("llm.stream", false),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(req))
	c.recordDuration(ctx, start, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return nil, fmt.Errorf("empty response from provider")
	}

	usage := backend.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	c.recordUsage(ctx, usage)

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usage,
	}, nil
}

// Stream requests a streamed reply. The returned stream must be closed.
func (c *Client) Stream(ctx context.Context, req *prompt.Request) (backend.Stream, error) {
	ctx, span := c.tracer.Start(ctx, "groq_api_call", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.String("llm.persona", string(req.Persona)),
		attribute.Bool("llm.stream", true),
	))

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(req))
	if err != nil {
		c.recordDuration(ctx, start, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion stream failed")
		span.End()
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}

	return &chatStream{
		ctx:    ctx,
		client: c,
		stream: stream,
		span:   span,
		start:  start,
	}, nil
}

func (c *Client) recordDuration(ctx context.Context, start time.Time, ok bool) {
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("llm.model", c.model), attribute.Bool("success", ok)))
}

// recordUsage records OpenTelemetry counters from usage data
func (c *Client) recordUsage(ctx context.Context, usage backend.Usage) {
	values := map[string]int{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
	for key, value := range values {
		if value == 0 {
			continue
		}
		counter, err := c.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			c.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, int64(value))
	}
}

// StatusCode extracts the upstream HTTP status from a provider error, or 0
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
