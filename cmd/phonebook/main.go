// Package main is the entry point for the phonebook service and its CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const (
	defaultServerURL = "http://localhost:3001"
	dotEnvPath       = ".env"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the binary without a
// subcommand starts the HTTP service.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "phonebook",
		Short:         "Phonebook - a small REST service for names and numbers",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newPersonsCmd())
	root.AddCommand(newInfoCmd())
	return root
}

// loadConfig reads .env (if present) and then the environment.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger configures the global zerolog logger from cfg and returns the
// logger for the main component.
func setupLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "phonebook").Str("version", version).Logger()
	}

	return log.With().Str("component", "main").Logger()
}
