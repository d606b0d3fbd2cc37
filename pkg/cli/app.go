package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	_ "github.com/ekaya-inc/querybridge/pkg/adapters/backend/memory"
	_ "github.com/ekaya-inc/querybridge/pkg/adapters/backend/mongodb"
	_ "github.com/ekaya-inc/querybridge/pkg/adapters/backend/postgres"
	"github.com/ekaya-inc/querybridge/pkg/config"
	"github.com/ekaya-inc/querybridge/pkg/health"
	"github.com/ekaya-inc/querybridge/pkg/logging"
	"github.com/ekaya-inc/querybridge/pkg/query"
)

// app is the wiring shared by every command that talks to a backend.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend backend.Backend
	gateway *query.Gateway
	prober  *health.Prober
}

func loadConfig(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(opts.ConfigPath, opts.Version)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "create logger", err)
	}
	return cfg, logger, nil
}

// openApp loads config, opens the configured backend and builds the gateway.
// The caller must call close.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	b, err := backend.Open(ctx, cfg.Backend.Type, cfg.BackendSettings(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, WrapExitError(ExitFailure, "open backend", err)
	}

	timeout := time.Duration(cfg.Probe.TimeoutMillis) * time.Millisecond
	return &app{
		cfg:     cfg,
		logger:  logger,
		backend: b,
		gateway: query.NewGateway(b, logger),
		prober:  health.NewProber(b, cfg.Probe.Table, timeout, logger),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.backend.Close(ctx); err != nil {
		a.logger.Warn("Failed to close backend", zap.Error(err))
	}
	_ = a.logger.Sync()
}
