package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Little-Star888/agenttask/internal/config"
	"github.com/Little-Star888/agenttask/internal/engine"
	"github.com/Little-Star888/agenttask/internal/model"
	"github.com/Little-Star888/agenttask/internal/step"
	"github.com/Little-Star888/agenttask/internal/step/builtin"
	"github.com/Little-Star888/agenttask/internal/store"
)

// globalFlags override the environment configuration when set.
type globalFlags struct {
	store  string
	dbPath string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "agenttask",
		Short: "Agent task definition store and step runner",
		Long: `agenttask stores named automations made of ordered steps and runs them.

Configuration comes from AGENTTASK_* environment variables; the flags below
override the storage settings for a single invocation.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.store, "store", "", "storage backend: sqlite, redis or memory")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path")

	root.AddCommand(
		newServeCmd(&flags),
		newTasksCmd(&flags),
		newRunCmd(&flags),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flags.store != "" {
		cfg.Store = flags.store
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openStore opens the backend named by cfg.Store.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreRedis:
		rs, err := store.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		ss, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
}

// app bundles everything a command needs to touch tasks or run them.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    store.Store
	registry *step.Registry
	runner   *engine.Runner
}

func newApp(ctx context.Context, flags *globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(logOut, cfg.LogLevel)

	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	reg := step.NewRegistry()
	builtin.Register(reg, logger)

	runner := engine.NewRunner(s, reg, logger,
		engine.WithRunTimeout(cfg.RunTimeout),
		engine.WithHistorySize(cfg.RunHistory),
	)

	return &app{cfg: cfg, logger: logger, store: s, registry: reg, runner: runner}, nil
}

// saveTask applies the same checks as the HTTP API before persisting.
func (a *app) saveTask(ctx context.Context, id, name string, cfg model.TaskConfig) (*model.Task, error) {
	if err := model.ValidateTask(name, &cfg); err != nil {
		return nil, err
	}
	if err := a.registry.Validate(cfg.Steps); err != nil {
		return nil, err
	}
	return a.store.SaveTask(ctx, name, cfg, id)
}

func (a *app) Close() error {
	a.runner.Wait()
	return a.store.Close()
}
