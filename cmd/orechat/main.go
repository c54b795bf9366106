package main

import (
	"fmt"
	"os"

	"OreChat/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "orechat",
		Short: "Ore AI chat: a credential-holding relay and terminal clients",
		Long: `orechat runs the relay that forwards conversations to the completion
provider, and the terminal clients that talk to it.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, chatCmd, journalCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		loaded.Debug = true
	}
	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
