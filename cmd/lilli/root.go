package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ryanmello/lilli/internal/config"
)

var (
	configPath  string
	offlineMode bool
	sessionFlag string
)

var rootCmd = &cobra.Command{
	Use:   "lilli",
	Short: "Flower shop assistant",
	Long: `Lilli answers flower shop requests by routing each one to the right
capability handlers and combining their answers into one reply.

With no arguments, starts an interactive chat session.

Handlers:
- design: bouquets and arrangements for an occasion
- inventory: stock levels, colors, stem lengths
- delivery: dates, zip codes, fees
- pricing: totals for designs and deliveries
- customer: customer and order lookup
- email: drafts confirmation and quote emails`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads .env, then the layered config or the file given by --config.
// --offline overrides the configured provider.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if offlineMode {
		cfg.LLM.Provider = config.ProviderOffline
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/lilli/config.yaml and .lilli.yaml)")
	rootCmd.PersistentFlags().BoolVar(&offlineMode, "offline", false, "Use keyword routing and canned answers instead of a model")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "Session ID to continue (default: a new session)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(handlersCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
