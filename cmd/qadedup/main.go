package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Saberlve/LLM-Kit-sub000/internal/config"
	"github.com/Saberlve/LLM-Kit-sub000/internal/logging"
	"github.com/Saberlve/LLM-Kit-sub000/internal/storage"
)

var (
	cfgFile  string
	envFile  string
	dbPath   string
	logLevel string

	appConfig *config.Config
	logger    = zerolog.Nop()
	store     storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "qadedup",
	Short: "Near-duplicate removal for question/answer datasets",
	Long: `qadedup removes near-duplicate question/answer pairs from JSON datasets
using MinHash signatures and locality-sensitive hashing.

Configuration is read from dedup.yaml (or --config), then QADEDUP_*
environment variables (optionally loaded from a .env file), then flags.
Every pass is recorded in a local SQLite history database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadEnvFile(envFile); err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		appConfig = cfg

		l, err := logging.New(cfg.Environment, cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	cobra.OnFinalize(closeStore)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./dedup.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Env file to load (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Pass history database (default: auto-discover)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// openStore opens the pass history database on first use.
func openStore(ctx context.Context) (storage.Storage, error) {
	if store != nil {
		return store, nil
	}

	explicit := dbPath
	if explicit == "" && appConfig != nil {
		explicit = appConfig.DatabasePath
	}
	path, err := storage.DiscoverDatabase(explicit)
	if err != nil {
		return nil, err
	}

	s, err := storage.NewStorage(ctx, &storage.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Msg("opened pass history database")
	store = s
	return store, nil
}

// closeStore closes the pass history database if a command opened it. It
// runs after every command, including ones whose RunE failed.
func closeStore() {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close database")
	}
	store = nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
