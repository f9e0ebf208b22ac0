package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/skill-improver/internal/config"
	"github.com/jonathan/skill-improver/internal/db"
	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/metrics"
	"github.com/jonathan/skill-improver/internal/schemas"
	"github.com/jonathan/skill-improver/internal/store"
)

// app bundles what every subcommand needs: resolved settings, a logger and
// an engine over the configured store.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	store  store.Store
	engine *improvement.Engine
	close  func()
}

// loadSettings resolves configuration in order: file, defaults, environment, flags.
func loadSettings() (config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	if storeFlag != "" {
		merged.Store = storeFlag
	}
	if databaseURL != "" {
		merged.DatabaseURL = databaseURL
	}
	if badgerPath != "" {
		merged.BadgerPath = badgerPath
	}
	if logLevel != "" {
		merged.LogLevel = logLevel
	}
	if verbose {
		merged.Verbose = true
	}

	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// newLogger writes human-readable log lines to w.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// openStore opens the configured record store. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return database, database.Close, nil
	case config.StoreBadger:
		badgerLogger := logger.With().Str("component", "badger").Logger()
		bs, err := store.OpenBadger(store.BadgerConfig{Path: cfg.BadgerPath, Logger: &badgerLogger})
		if err != nil {
			return nil, nil, err
		}
		return bs, func() {
			if err := bs.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close badger store")
			}
		}, nil
	case config.StoreMemory, "":
		return store.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// newApp wires settings, logging, the store and the engine. A non-nil
// recorder receives engine metrics.
func newApp(ctx context.Context, recorder *metrics.Metrics) (*app, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)

	s, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	opts := []improvement.Option{
		improvement.WithConfig(cfg.ImprovementPolicy()),
		improvement.WithLogger(logger),
	}
	if recorder != nil {
		opts = append(opts, improvement.WithRecorder(recorder))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  s,
		engine: improvement.NewEngine(s, opts...),
		close:  closeStore,
	}, nil
}

// withApp runs fn against a freshly wired app and releases the store afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Store == config.StoreMemory {
		a.logger.Warn().Msg("memory store does not persist between commands; use --store badger or postgres")
	}
	return fn(a)
}

// readValidated checks a JSON file against an embedded schema and decodes it into out.
func readValidated(schemaName, path string, out any) error {
	if err := schemas.ValidateFile(schemaName, path); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
