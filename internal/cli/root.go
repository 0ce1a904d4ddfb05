// Package cli implements the mnemo CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evanwhit/mnemo/internal/config"
	"github.com/evanwhit/mnemo/internal/embedding"
	"github.com/evanwhit/mnemo/internal/store"
)

var (
	dbPath  string
	verbose bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Tiered memory for AI assistants",
	Long:  "Tiered memory engine for AI assistants. Short-term, intermediate and long-term tiers with promotion, expiry and distillation. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MNEMO_DB_PATH or ~/.mnemo/memory.db)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		home, _ := os.UserHomeDir()
		cfg.DBPath = filepath.Join(home, ".mnemo", "memory.db")
	}
	return cfg, nil
}

func openStore() (*store.TierStore, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	emb, err := embedding.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.New(cfg.DBPath, cfg, emb, logger())
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
