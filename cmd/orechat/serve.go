package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"OreChat/internal/journal"
	"OreChat/internal/prompt"
	"OreChat/internal/provider"
	"OreChat/internal/relay"
	"OreChat/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	servePersona string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the relay that holds the provider credential",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides relay.addr)")
	serveCmd.Flags().StringVar(&servePersona, "persona", "", "Default persona: "+joinPersonas())
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Relay.Addr = serveAddr
	}
	if cmd.Flags().Changed("persona") {
		cfg.Relay.DefaultPersona = servePersona
	}
	persona, err := prompt.ParsePersona(cfg.Relay.DefaultPersona, prompt.PersonaWarm)
	if err != nil {
		return err
	}

	logger, closeLog, err := telemetry.InitLogger(telemetry.LogOptions{
		Dir:    cfg.LogDir,
		File:   "relay.log",
		Debug:  cfg.Debug,
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _, cleanup, err := telemetry.InitTelemetry(ctx, "orechat-relay", cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	apiKey, err := cfg.Relay.APIKey()
	if err != nil {
		return err
	}
	upstream, err := provider.New(provider.Config{
		BaseURL: cfg.Relay.BaseURL,
		Model:   cfg.Relay.Model,
		APIKey:  apiKey,
	}, logger)
	if err != nil {
		return err
	}

	opts := relay.Options{
		Addr:           cfg.Relay.Addr,
		Model:          upstream.Model(),
		DefaultPersona: persona,
		RatePerMinute:  cfg.Relay.RatePerMinute,
		RateBurst:      cfg.Relay.RateBurst,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		Logger:         logger,
	}
	if cfg.Relay.JournalPath != "" {
		j, err := journal.Open(cfg.Relay.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts.Journal = j
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	return relay.New(upstream, opts).Run(ctx)
}
