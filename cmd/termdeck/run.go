package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abdullathedruid/termdeck/internal/app"
	"github.com/abdullathedruid/termdeck/internal/catalog"
	"github.com/abdullathedruid/termdeck/internal/config"
	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/logging"
	"github.com/abdullathedruid/termdeck/internal/metrics"
	"github.com/abdullathedruid/termdeck/internal/tmux"
)

// loadConfig reads the configuration from dataDir, or the default location
// when dataDir is empty.
func loadConfig(dataDir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if dataDir == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := logging.DefaultConfig(cfg.LogFile())
	logCfg.Development = cfg.Log.Development
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	return logging.New(logCfg)
}

func runUI(ctx context.Context, dataDir string) error {
	cfg, err := loadConfig(dataDir)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("metrics listener stopped", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	store, err := catalog.Open(ctx, cfg.CatalogFile())
	if err != nil {
		return err
	}
	defer store.Close()

	backend := host.NewTmux(tmux.NewClient(), host.TmuxOptions{
		Prefix:        cfg.SessionPrefix,
		Shell:         cfg.DefaultShell,
		AgentCommand:  cfg.AgentCommand,
		ResumeArgs:    cfg.ResumeArgs,
		SnapshotLines: cfg.Timing.SnapshotLines,
		KillOnExit:    cfg.KillOnExit,
		Logger:        logger,
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}()

	a, err := app.New(ctx, app.Options{
		Config:  cfg,
		Backend: backend,
		Catalog: store,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}
	logger.Info("starting", zap.String("data_dir", cfg.DataDir))
	return a.Run()
}
