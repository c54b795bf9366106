package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"OreChat/internal/chat"
	"OreChat/internal/completion"
	"OreChat/internal/prompt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultGreeting is seeded once the session is ready
	DefaultGreeting = "🧔🏻‍♂️🙏🏻 Oie, que a paz do senhor jesus esteja com você, sou o Ore AI, seu agente especial da fé, como posso te ajudar?"
	// DefaultErrorMessage replaces the reply of a failed completion
	DefaultErrorMessage = "Desculpe, ocorreu um erro ao processar sua mensagem."
	// DefaultConnectDelay is the length of the connecting phase
	DefaultConnectDelay = 2 * time.Second
)

// Options configures a Controller
type Options struct {
	Persona      prompt.Persona
	Greeting     string
	ErrorMessage string
	ConnectDelay time.Duration
	Logger       *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Persona == "" {
		o.Persona = prompt.PersonaWarm
	}
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if o.ErrorMessage == "" {
		o.ErrorMessage = DefaultErrorMessage
	}
	if o.ConnectDelay < 0 {
		o.ConnectDelay = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Controller orchestrates turn submission for one session
type Controller struct {
	client  completion.Client
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	session *Session

	mu        sync.Mutex
	pending   bool
	conn      ConnectionState
	started   bool
	closed    bool
	timer     *time.Timer
	readyCh   chan struct{}
	listeners map[int]Listener
	nextID    int
	unwatch   func()
}

// New creates a Controller. The session starts in the connecting state with
// an empty transcript; call Start to begin the transition to ready.
func New(client completion.Client, opts Options) *Controller {
	opts.setDefaults()

	c := &Controller{
		client:    client,
		opts:      opts,
		logger:    opts.Logger,
		tracer:    otel.Tracer("orechat/session"),
		session:   newSession(opts.Persona),
		conn:      Connecting,
		readyCh:   make(chan struct{}),
		listeners: make(map[int]Listener),
	}

	c.unwatch = c.session.Transcript.Subscribe(func(turn chat.Turn, index int) {
		c.emit(Event{Kind: EventTurnAppended, Turn: turn, Index: index})
	})

	c.logger.Info("created new session", "session_id", c.session.ID, "persona", opts.Persona)
	return c
}

// ID returns the session identifier
func (c *Controller) ID() string {
	return c.session.ID
}

// Start begins the time-boxed connecting phase. It is a no-op after the
// first call.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.timer = time.AfterFunc(c.opts.ConnectDelay, c.becomeReady)
}

func (c *Controller) becomeReady() {
	c.mu.Lock()
	if c.closed || c.conn == Ready {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// seed before flipping the state so no submission can precede the greeting
	c.session.Transcript.Append(chat.AssistantTurn(c.opts.Greeting))

	c.mu.Lock()
	c.conn = Ready
	close(c.readyCh)
	c.mu.Unlock()

	c.logger.Info("session ready", "session_id", c.session.ID)
	c.emit(Event{Kind: EventReady})
}

// WaitReady blocks until the session is ready or ctx is done
func (c *Controller) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close discards the session: the ready timer is stopped and listeners are
// dropped. An in-flight completion is abandoned, not cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.listeners = make(map[int]Listener)
	c.unwatch()
	c.logger.Info("session closed",
		"session_id", c.session.ID,
		"turns", c.session.Transcript.Len(),
		"duration_ms", time.Since(c.session.StartTime).Milliseconds(),
	)
}

// Subscribe registers a listener and returns a function that removes it
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Turns returns the transcript in append order
func (c *Controller) Turns() []chat.Turn {
	return c.session.Transcript.All()
}

// Pending reports whether a completion is outstanding
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Connection returns the connection state
func (c *Controller) Connection() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Persona returns the persona used for the next submission
func (c *Controller) Persona() prompt.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Persona
}

// SetPersona switches the persona for later submissions
func (c *Controller) SetPersona(p prompt.Persona) error {
	if _, err := prompt.Lookup(p); err != nil {
		return err
	}
	c.mu.Lock()
	c.session.Persona = p
	c.mu.Unlock()
	c.logger.Info("persona switched", "session_id", c.session.ID, "persona", p)
	return nil
}

// Submit runs one turn: it appends the user turn, calls the completion
// client and appends exactly one assistant turn. Completion failures never
// escape; they become the error placeholder turn.
func (c *Controller) Submit(ctx context.Context, input string) Outcome {
	if outcome, ok := c.acquire(); !ok {
		return outcome
	}
	defer c.release()

	text := strings.TrimSpace(input)
	if text == "" {
		return OutcomeRejected
	}

	persona := c.Persona()
	history := c.session.Transcript.All()
	req, err := prompt.Build(history, text, persona)
	if err != nil {
		c.logger.Warn("rejected submission", "session_id", c.session.ID, "error", err)
		return OutcomeRejected
	}

	ctx, span := c.tracer.Start(ctx, "session_submit", trace.WithAttributes(
		attribute.String("session.id", c.session.ID),
		attribute.String("persona", string(persona)),
		attribute.Int("history.turns", len(history)),
	))
	defer span.End()

	c.session.Transcript.Append(chat.UserTurn(text))

	start := time.Now()
	reply, err := c.complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		c.logger.Error("failed to complete message",
			"session_id", c.session.ID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		c.emit(Event{Kind: EventRequestFailed, Err: err})
		c.session.Transcript.Append(chat.ErrorTurn(c.opts.ErrorMessage))
		return OutcomeFailed
	}

	c.session.Transcript.Append(chat.AssistantTurn(reply))
	c.logger.Info("completed message",
		"session_id", c.session.ID,
		"reply_len", len(reply),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return OutcomeReplied
}

func (c *Controller) acquire() (Outcome, bool) {
	c.mu.Lock()
	if c.closed || c.conn != Ready {
		c.mu.Unlock()
		return OutcomeNotReady, false
	}
	if c.pending {
		c.mu.Unlock()
		return OutcomeBusy, false
	}
	c.pending = true
	c.mu.Unlock()

	c.emit(Event{Kind: EventPendingChanged, Pending: true})
	return 0, true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
	c.emit(Event{Kind: EventPendingChanged, Pending: false})
}

// complete calls the client and folds a streamed result into one string.
// A panic inside the client is converted into an error.
func (c *Controller) complete(ctx context.Context, req *prompt.Request) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion client panicked: %v", r)
		}
	}()

	res, err := c.client.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", errors.New("completion client returned no result")
	}
	if !res.Streamed() {
		return res.Text, nil
	}

	defer res.Fragments.Close()
	var sb strings.Builder
	for {
		chunk, err := res.Fragments.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
		c.emit(Event{Kind: EventPartial, Partial: sb.String()})
	}
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if l, ok := c.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	c.mu.Unlock()

	for _, l := range listeners {
		c.notify(l, ev)
	}
}

func (c *Controller) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "session_id", c.session.ID, "event", ev.Kind.String(), "panic", r)
		}
	}()
	l(ev)
}
