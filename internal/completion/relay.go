package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"OreChat/internal/backend"
	"OreChat/internal/prompt"
)

// Relay streams a reply through the relay server. The relay attaches the
// system instruction and the credential; this client only sends the persona
// name and the conversation.
type Relay struct {
	endpoint   string
	httpClient *http.Client
}

// RelayRequest is the body accepted by the relay's streaming endpoint
type RelayRequest struct {
	Persona  string                `json:"persona,omitempty"`
	Messages []backend.ChatMessage `json:"messages"`
}

// NewRelay creates a Relay client against the relay at baseURL
func NewRelay(baseURL string, httpClient *http.Client) *Relay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Relay{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/chat",
		httpClient: httpClient,
	}
}

// Submit opens the stream. Fragments are read lazily from the result.
func (r *Relay) Submit(ctx context.Context, req *prompt.Request) (*Result, error) {
	jsonData, err := json.Marshal(RelayRequest{
		Persona:  string(req.Persona),
		Messages: req.Conversation(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, failure(FailureTransport, 0, "failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, failure(FailureStatus, resp.StatusCode, "API error: %s - %s", resp.Status, string(body))
	}

	return &Result{Fragments: newPartStream(resp.Body)}, nil
}

// partStream adapts a data-stream body to backend.Stream
type partStream struct {
	body   io.ReadCloser
	reader *backend.PartReader
	done   bool
	err    error
	once   sync.Once
}

func newPartStream(body io.ReadCloser) *partStream {
	return &partStream{body: body, reader: backend.NewPartReader(body)}
}

func (s *partStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.err != nil {
		return "", s.err
	}

	for {
		part, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			s.err = failure(FailureStream, 0, "stream ended without finish part")
			return "", s.err
		}
		if err != nil {
			s.err = failure(FailureMalformed, 0, "%w", err)
			return "", s.err
		}

		switch part.Type {
		case backend.PartText:
			if part.Text == "" {
				continue
			}
			return part.Text, nil
		case backend.PartError:
			s.err = failure(FailureStream, 0, "relay reported: %s", part.Text)
			return "", s.err
		case backend.PartFinish:
			s.done = true
			return "", io.EOF
		}
	}
}

func (s *partStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
	})
	return err
}

var _ Client = (*Relay)(nil)
