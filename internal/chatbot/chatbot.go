package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"OreChat/internal/chat"
	"OreChat/internal/prompt"
	"OreChat/internal/session"
)

// Factory creates a new, not yet started, session controller
type Factory func(persona prompt.Persona) *session.Controller

// Options configures the ChatBot
type Options struct {
	Persona   prompt.Persona
	In        io.Reader
	Out       io.Writer
	Logger    *slog.Logger
	Listeners []session.Listener // attached to every session, e.g. the bell
}

// ChatBot is the plain line-oriented client
type ChatBot struct {
	factory   Factory
	persona   prompt.Persona
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
	listeners []session.Listener

	ctrl   *session.Controller
	detach []func()

	mu      sync.Mutex
	printed int // bytes of the current streamed reply already shown
}

// New creates a ChatBot. The first session is created by Run.
func New(factory Factory, opts Options) *ChatBot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ChatBot{
		factory:   factory,
		persona:   opts.Persona,
		in:        opts.In,
		out:       opts.Out,
		logger:    opts.Logger,
		listeners: opts.Listeners,
	}
}

// newSession replaces the current controller and waits until it is ready
func (cb *ChatBot) newSession(ctx context.Context) error {
	cb.closeSession()

	ctrl := cb.factory(cb.persona)
	cb.detach = append(cb.detach, ctrl.Subscribe(cb.render))
	for _, l := range cb.listeners {
		cb.detach = append(cb.detach, ctrl.Subscribe(l))
	}
	cb.ctrl = ctrl

	cb.println("Conectando...")
	ctrl.Start()
	if err := ctrl.WaitReady(ctx); err != nil {
		return fmt.Errorf("failed to connect session: %w", err)
	}
	return nil
}

func (cb *ChatBot) closeSession() {
	for _, fn := range cb.detach {
		fn()
	}
	cb.detach = nil
	if cb.ctrl != nil {
		cb.ctrl.Close()
		cb.ctrl = nil
	}
}

// render prints controller events. It runs on the submitting goroutine, or
// on the timer goroutine for the greeting.
func (cb *ChatBot) render(ev session.Event) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch ev.Kind {
	case session.EventPartial:
		if cb.printed == 0 {
			fmt.Fprint(cb.out, "Bot: ")
		}
		if len(ev.Partial) > cb.printed {
			fmt.Fprint(cb.out, ev.Partial[cb.printed:])
			cb.printed = len(ev.Partial)
		}

	case session.EventTurnAppended:
		if ev.Turn.Role != chat.RoleAssistant {
			return
		}
		switch {
		case cb.printed == 0:
			fmt.Fprintf(cb.out, "Bot: %s\n\n", ev.Turn.Content)
		case ev.Turn.Failed:
			fmt.Fprintf(cb.out, "\nBot: %s\n\n", ev.Turn.Content)
		default:
			if len(ev.Turn.Content) > cb.printed {
				fmt.Fprint(cb.out, ev.Turn.Content[cb.printed:])
			}
			fmt.Fprint(cb.out, "\n\n")
		}
		cb.printed = 0
	}
}

func (cb *ChatBot) println(a ...interface{}) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	fmt.Fprintln(cb.out, a...)
}

func (cb *ChatBot) printf(format string, a ...interface{}) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	fmt.Fprintf(cb.out, format, a...)
}

// handleCommand processes slash commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new-session":
		if err := cb.newSession(ctx); err != nil {
			return false, err
		}
		cb.printf("Started new session: %s\n", cb.ctrl.ID())
		return false, nil

	case "/persona":
		if len(parts) < 2 {
			cb.printf("Current persona: %s (available: %s)\n", cb.ctrl.Persona(), strings.Join(prompt.Names(), ", "))
			return false, nil
		}
		p, err := prompt.ParsePersona(parts[1], cb.persona)
		if err != nil {
			return false, err
		}
		if err := cb.ctrl.SetPersona(p); err != nil {
			return false, err
		}
		cb.persona = p
		cb.printf("Persona set to %s\n", p)
		return false, nil

	case "/help":
		cb.println("\nAvailable commands:")
		cb.println("  /help              - Show this help message")
		cb.println("  /persona [name]    - Show or switch the persona (" + strings.Join(prompt.Names(), "|") + ")")
		cb.println("  /new-session       - Start a new conversation")
		cb.println("  /quit, /exit       - Exit the chat")
		cb.println()
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", parts[0])
	}
}

// Run reads lines until EOF or /quit
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.closeSession()

	cb.println("=== OreChat ===")
	if err := cb.newSession(ctx); err != nil {
		return err
	}
	cb.printf("Session: %s\n", cb.ctrl.ID())
	cb.printf("Persona: %s\n", cb.ctrl.Persona())
	cb.println("Type /help for commands, /quit to exit")
	cb.println()

	scanner := bufio.NewScanner(cb.in)
	for {
		cb.printf("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		switch outcome := cb.ctrl.Submit(ctx, input); outcome {
		case session.OutcomeBusy:
			cb.println("Aguarde a resposta anterior.")
		case session.OutcomeNotReady:
			cb.println("Conectando...")
		case session.OutcomeRejected:
			cb.printf("Mensagem muito longa (máximo de %d bytes).\n", prompt.MaxInputBytes)
		default:
			cb.logger.Debug("turn finished", "session_id", cb.ctrl.ID(), "outcome", outcome)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cb.println("Goodbye!")
	return nil
}
