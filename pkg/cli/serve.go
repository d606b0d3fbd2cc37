package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/handlers"
	"github.com/ekaya-inc/querybridge/pkg/maintenance"
	"github.com/ekaya-inc/querybridge/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMaintenance bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve the query API over HTTP.

Routes:
  POST /api/query            execute a statement with positional params
  GET  /api/shapes           list recognized statement shapes
  POST /api/shapes/{shape}   execute a shape by name
  GET  /health, /ping, /ready`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMaintenance, "skip-maintenance", false, "do not run startup backfills or the periodic job")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	logger.Info("Configuration loaded",
		zap.String("env", a.cfg.Env),
		zap.String("backend", a.cfg.Backend.Type),
		zap.String("version", a.cfg.Version),
	)

	if !opts.SkipMaintenance {
		redisClient, err := startMaintenance(ctx, a)
		if err != nil {
			return err
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(a.cfg, a.prober, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(a.gateway, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Recoverer(logger)(handler)

	server := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting querybridge", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Shutting down", zap.Error(ctx.Err()))
	case err := <-serverErr:
		if err != nil {
			return WrapExitError(ExitFailure, "server failed", err)
		}
		return nil
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown", err)
	}
	return nil
}

// startMaintenance runs the startup backfills and launches the periodic job.
// The returned Redis client is nil when Redis is not configured.
func startMaintenance(ctx context.Context, a *app) (*redis.Client, error) {
	redisClient, err := maintenance.NewRedisClient(ctx, &a.cfg.Redis)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "connect to redis", err)
	}

	var locker maintenance.Locker
	if redisClient != nil {
		locker = maintenance.NewRedisLocker(redisClient)
	}

	runner := maintenance.NewRunner(a.gateway, a.prober, locker, a.cfg.Maintenance, a.logger)
	if a.cfg.Maintenance.RunOnStartup {
		report, err := runner.RunStartup(ctx)
		if err != nil {
			a.logger.Warn("Startup maintenance failed", zap.Error(err))
		} else {
			a.logger.Info("Startup maintenance finished",
				zap.Bool("skipped", report.Skipped),
				zap.Int("users_activated", report.UsersActivated),
			)
		}
	}
	runner.Start(ctx)
	return redisClient, nil
}
