package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"melhor-casa/config"
	"melhor-casa/state"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger
)

func main() {
	cfg = config.Load()
	logger = utils.NewLoggerWithOptions(utils.LoggerOptions{
		Writer: os.Stderr,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	rootCmd := &cobra.Command{
		Use:           "melhorcasa",
		Short:         "Triage real-estate listings",
		Long:          `Import, scrape, filter and triage property listings, and plan savings for a down payment`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createSitesCmd())
	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createListCmd())
	rootCmd.AddCommand(createMarkCmd())
	rootCmd.AddCommand(createTagCmd())
	rootCmd.AddCommand(createExportCmd())
	rootCmd.AddCommand(createInsightsCmd())
	rootCmd.AddCommand(createLocateCmd())
	rootCmd.AddCommand(createSavingsCmd())
	rootCmd.AddCommand(createScrapeCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// session is the triage state of the local profile.
type session struct {
	kv  *storage.FileKV
	app *state.App
}

func openSession() (*session, error) {
	kv, err := storage.NewFileKV(cfg.ProfileDir, logger)
	if err != nil {
		return nil, err
	}
	app := state.New(logger)
	if err := state.Load(kv, app); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	logger.Debug("Loaded profile %s with %d properties", cfg.ProfileDir, app.Len())
	return &session{kv: kv, app: app}, nil
}

// save persists the dirty keys and, when enabled, mirrors the profile to
// PostgreSQL, dropping rows of removed records. A mirror failure is logged,
// never fatal.
func (s *session) save(ctx context.Context, keys []state.Key) error {
	if len(keys) == 0 {
		return nil
	}
	if err := state.Persist(s.kv, s.app, keys...); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if !cfg.PostgresEnabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pg, err := storage.NewPostgresStore(ctx, cfg.DSN())
	if err != nil {
		logger.Warn("PostgreSQL mirror unavailable: %v", err)
		return nil
	}
	defer pg.Close()
	removed, err := pg.Sync(ctx, s.app.All())
	if err != nil {
		logger.Warn("PostgreSQL mirror failed: %v", err)
		return nil
	}
	logger.Info("Mirrored %d properties to PostgreSQL (%d removed)", s.app.Len(), removed)
	return nil
}
