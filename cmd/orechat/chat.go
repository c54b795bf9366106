package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"OreChat/internal/chatbot"
	"OreChat/internal/completion"
	"OreChat/internal/config"
	"OreChat/internal/cue"
	"OreChat/internal/prompt"
	"OreChat/internal/session"
	"OreChat/internal/telemetry"
	"OreChat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	chatPlain   bool
	chatMode    string
	chatPersona string
	chatRelay   string

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Open a chat session against the relay",
		RunE:  runChat,
	}
)

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Use the line-oriented client instead of the full-screen UI")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "Completion mode: stream|batch (overrides client.mode)")
	chatCmd.Flags().StringVar(&chatPersona, "persona", "", "Persona: "+joinPersonas())
	chatCmd.Flags().StringVar(&chatRelay, "relay", "", "Relay base URL (overrides client.relay_url)")
}

func joinPersonas() string {
	return strings.Join(prompt.Names(), "|")
}

func newCompletionClient(c config.ClientConfig) (completion.Client, error) {
	switch c.Mode {
	case config.ModeStream:
		return completion.NewRelay(c.RelayURL, &http.Client{}), nil
	case config.ModeBatch:
		return completion.NewDirect(c.RelayURL, "", &http.Client{}), nil
	default:
		return nil, fmt.Errorf("unknown mode %q (want %s|%s)", c.Mode, config.ModeStream, config.ModeBatch)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("mode") {
		cfg.Client.Mode = chatMode
	}
	if cmd.Flags().Changed("persona") {
		cfg.Client.Persona = chatPersona
	}
	if cmd.Flags().Changed("relay") {
		cfg.Client.RelayURL = chatRelay
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	persona, err := prompt.ParsePersona(cfg.Client.Persona, prompt.PersonaStrict)
	if err != nil {
		return err
	}
	client, err := newCompletionClient(cfg.Client)
	if err != nil {
		return err
	}

	// the terminal belongs to the UI, so logs only go to the file
	logger, closeLog, err := telemetry.InitLogger(telemetry.LogOptions{
		Dir:   cfg.LogDir,
		File:  "chat.log",
		Debug: cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _, cleanup, err := telemetry.InitTelemetry(ctx, "orechat-chat", cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	opts := session.Options{
		Persona:      persona,
		Greeting:     cfg.Client.Greeting,
		ErrorMessage: cfg.Client.ErrorMessage,
		ConnectDelay: cfg.Client.ConnectDelay,
		Logger:       logger,
	}

	var listeners []session.Listener
	if cfg.Client.Sound {
		listeners = append(listeners, cue.NewBell(os.Stdout).Listener())
	}

	logger.Info("starting chat client", "relay", cfg.Client.RelayURL, "mode", cfg.Client.Mode, "plain", chatPlain)

	if chatPlain {
		factory := func(p prompt.Persona) *session.Controller {
			o := opts
			o.Persona = p
			return session.New(client, o)
		}
		bot := chatbot.New(factory, chatbot.Options{
			Persona:   persona,
			In:        os.Stdin,
			Out:       os.Stdout,
			Logger:    logger,
			Listeners: listeners,
		})
		return bot.Run(ctx)
	}

	ctrl := session.New(client, opts)
	defer ctrl.Close()
	for _, l := range listeners {
		ctrl.Subscribe(l)
	}

	model := tui.New(ctx, ctrl)
	defer model.Close()

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
