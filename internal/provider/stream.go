package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"OreChat/internal/backend"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// chatStream adapts a go-openai stream to backend.Stream, skipping empty deltas
type chatStream struct {
	ctx    context.Context
	client *Client
	stream *openai.ChatCompletionStream
	span   trace.Span
	start  time.Time

	fragments    int
	finishReason string
	usage        *backend.Usage
	done         bool
	once         sync.Once
}

func (s *chatStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.client.recordDuration(s.ctx, s.start, true)
			if s.usage != nil {
				s.client.recordUsage(s.ctx, *s.usage)
			}
			return "", io.EOF
		}
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, "stream receive failed")
			s.client.recordDuration(s.ctx, s.start, false)
			return "", fmt.Errorf("failed to receive stream chunk: %w", err)
		}

		if resp.Usage != nil {
			s.usage = &backend.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			s.finishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		s.fragments++
		return choice.Delta.Content, nil
	}
}

// FinishReason is the provider's finish reason, known once Recv returned io.EOF
func (s *chatStream) FinishReason() string {
	if s.finishReason == "" {
		return "stop"
	}
	return s.finishReason
}

// Usage is the token usage reported by the provider, if any
func (s *chatStream) Usage() *backend.Usage {
	return s.usage
}

func (s *chatStream) Close() error {
	var err error
	s.once.Do(func() {
		s.span.SetAttributes(attribute.Int("llm.fragments", s.fragments))
		s.span.End()
		err = s.stream.Close()
	})
	return err
}
