package chatbot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"OreChat/internal/completion"
	"OreChat/internal/prompt"
	"OreChat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	personas []prompt.Persona
	submit   func() (*completion.Result, error)
}

func (f *fakeClient) Submit(_ context.Context, req *prompt.Request) (*completion.Result, error) {
	f.mu.Lock()
	f.personas = append(f.personas, req.Persona)
	f.mu.Unlock()
	return f.submit()
}

type sliceStream struct {
	chunks []string
	pos    int
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	s.pos++
	return s.chunks[s.pos-1], nil
}

func (s *sliceStream) Close() error { return nil }

func runBot(t *testing.T, client completion.Client, input string, listeners ...session.Listener) (string, int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := 0
	factory := func(p prompt.Persona) *session.Controller {
		sessions++
		return session.New(client, session.Options{Persona: p, Logger: logger})
	}

	var out bytes.Buffer
	bot := New(factory, Options{
		Persona:   prompt.PersonaWarm,
		In:        strings.NewReader(input),
		Out:       &out,
		Logger:    logger,
		Listeners: listeners,
	})
	require.NoError(t, bot.Run(context.Background()))
	return out.String(), sessions
}

func TestRun_BatchReply(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Text: "Test reply"}, nil
	}}

	out, _ := runBot(t, client, "Hello\n/quit\n")

	assert.Contains(t, out, "Conectando...")
	assert.Contains(t, out, "Bot: "+session.DefaultGreeting+"\n\n")
	assert.Contains(t, out, "Bot: Test reply\n\n")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestRun_StreamedReply(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Fragments: &sliceStream{chunks: []string{"Hel", "lo"}}}, nil
	}}

	out, _ := runBot(t, client, "Hi\n")
	assert.Contains(t, out, "Bot: Hello\n\n")
}

func TestRun_FailureShowsPlaceholder(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return nil, &completion.Failure{Kind: completion.FailureStatus, StatusCode: 500, Err: errors.New("boom")}
	}}

	out, _ := runBot(t, client, "Hello\n")
	assert.Contains(t, out, "Bot: "+session.DefaultErrorMessage)
	assert.NotContains(t, out, "boom")
}

func TestRun_PersonaCommand(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Text: "ok"}, nil
	}}

	out, _ := runBot(t, client, "/persona strict\nHello\n/persona pirate\n/persona\n")

	assert.Contains(t, out, "Persona set to strict")
	assert.Contains(t, out, "Error: unknown persona")
	assert.Contains(t, out, "Current persona: strict")
	require.Len(t, client.personas, 1)
	assert.Equal(t, prompt.PersonaStrict, client.personas[0])
}

func TestRun_NewSessionCommand(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Text: "ok"}, nil
	}}

	out, sessions := runBot(t, client, "/new-session\n/exit\nignored\n")

	assert.Equal(t, 2, sessions)
	assert.Contains(t, out, "Started new session:")
	assert.Equal(t, 2, strings.Count(out, "Bot: "+session.DefaultGreeting))
	assert.Empty(t, client.personas, "nothing after /exit is submitted")
}

func TestRun_OversizedInputKeepsSessionUsable(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Text: "ok"}, nil
	}}

	long := strings.Repeat("a", prompt.MaxInputBytes+1)
	out, _ := runBot(t, client, long+"\nHello\n")

	assert.Contains(t, out, "Mensagem muito longa")
	assert.Contains(t, out, "Bot: ok\n\n")
	assert.Len(t, client.personas, 1, "only the valid input reaches the client")
}

func TestRun_UnknownCommand(t *testing.T) {
	client := &fakeClient{}
	out, _ := runBot(t, client, "/dance\n/help\n")

	assert.Contains(t, out, "Error: unknown command: /dance")
	assert.Contains(t, out, "Available commands:")
}

func TestRun_ExtraListeners(t *testing.T) {
	client := &fakeClient{submit: func() (*completion.Result, error) {
		return &completion.Result{Text: "ok"}, nil
	}}

	var mu sync.Mutex
	var kinds []session.EventKind
	listener := func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	}

	runBot(t, client, "Hello\n", listener)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, session.EventReady)
	assert.Contains(t, kinds, session.EventPendingChanged)
}
