package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/apperrors"
	"github.com/ekaya-inc/querybridge/pkg/config"
	"github.com/ekaya-inc/querybridge/pkg/query"
)

// LockKey is the Redis key guarding the periodic job.
const LockKey = "querybridge:maintenance"

const (
	selectMissingActive = "SELECT id FROM users WHERE is_active IS NULL"
	activateUser        = "UPDATE users SET is_active = true WHERE id = $1"
	selectExpiring      = "SELECT id FROM contracts WHERE status = $1 AND end_date < $2"
	expireContract      = "UPDATE contracts SET status = 'expired' WHERE id = $1"
	selectExpiredTokens = "SELECT id FROM users WHERE reset_token IS NOT NULL AND reset_token_expires < $1"
	clearResetToken     = "UPDATE users SET reset_token = NULL, reset_token_expires = NULL WHERE id = $1"
)

// Prober reports whether the backend is usable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Executor runs statements through the query layer.
type Executor interface {
	Execute(ctx context.Context, text string, params []any) (*query.Result, error)
}

// Report counts the rows each task touched.
type Report struct {
	Skipped          bool
	UsersActivated   int
	ContractsExpired int
	TokensCleared    int
}

// Runner runs the startup backfill and the periodic job. Both are gated by
// the health probe: a failed probe skips the work until the next run.
type Runner struct {
	exec   Executor
	prober Prober
	locker Locker
	cfg    config.MaintenanceConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewRunner creates a Runner. A nil locker means a single instance.
func NewRunner(exec Executor, prober Prober, locker Locker, cfg config.MaintenanceConfig, logger *zap.Logger) *Runner {
	if locker == nil {
		locker = localLocker{}
	}
	return &Runner{
		exec:   exec,
		prober: prober,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("maintenance"),
	}
}

// RunStartup backfills users whose is_active flag is missing.
func (r *Runner) RunStartup(ctx context.Context) (Report, error) {
	if !r.prober.Probe(ctx) {
		r.logger.Warn("Backend probe failed, skipping startup maintenance")
		return Report{Skipped: true}, nil
	}

	n, err := r.forEachID(ctx, selectMissingActive, nil, activateUser)
	if err != nil {
		return Report{UsersActivated: n}, fmt.Errorf("backfill is_active: %w", err)
	}
	if n > 0 {
		r.logger.Info("Backfilled missing is_active flags", zap.Int("users", n))
	}
	return Report{UsersActivated: n}, nil
}

// Tick runs one pass of the periodic job under the lock.
func (r *Runner) Tick(ctx context.Context) (Report, error) {
	if !r.prober.Probe(ctx) {
		r.logger.Warn("Backend probe failed, skipping maintenance tick")
		return Report{Skipped: true}, nil
	}

	release, ok, err := r.locker.Acquire(ctx, LockKey, r.lockTTL())
	if err != nil {
		return Report{}, err
	}
	if !ok {
		r.logger.Debug("Maintenance lock held elsewhere, skipping tick")
		return Report{Skipped: true}, apperrors.ErrMaintenanceLockHeld
	}
	defer release(ctx)

	now := r.now().UTC()
	var report Report

	report.ContractsExpired, err = r.forEachID(ctx, selectExpiring, []any{"active", now}, expireContract)
	if err != nil {
		return report, fmt.Errorf("expire contracts: %w", err)
	}

	report.TokensCleared, err = r.forEachID(ctx, selectExpiredTokens, []any{now}, clearResetToken)
	if err != nil {
		return report, fmt.Errorf("clear reset tokens: %w", err)
	}

	if report.ContractsExpired > 0 || report.TokensCleared > 0 {
		r.logger.Info("Maintenance tick completed",
			zap.Int("contracts_expired", report.ContractsExpired),
			zap.Int("reset_tokens_cleared", report.TokensCleared))
	}
	return report, nil
}

// Start runs the periodic job in the background until ctx is cancelled. An
// interval of zero disables the job.
func (r *Runner) Start(ctx context.Context) {
	if r.cfg.IntervalMinutes <= 0 {
		r.logger.Info("Maintenance job disabled")
		return
	}
	interval := time.Duration(r.cfg.IntervalMinutes) * time.Minute

	go func() {
		r.logger.Info("Maintenance job started", zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Maintenance job stopped")
				return
			case <-ticker.C:
				if _, err := r.Tick(ctx); err != nil && !errors.Is(err, apperrors.ErrMaintenanceLockHeld) {
					r.logger.Error("Maintenance tick failed", zap.Error(err))
				}
			}
		}
	}()
}

// forEachID selects ids with selectText and runs updateText once per id.
// Returns how many updates matched a row.
func (r *Runner) forEachID(ctx context.Context, selectText string, params []any, updateText string) (int, error) {
	res, err := r.exec.Execute(ctx, selectText, params)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, row := range res.Rows {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		id, ok := row["id"]
		if !ok || id == nil {
			continue
		}
		out, err := r.exec.Execute(ctx, updateText, []any{id})
		if err != nil {
			return updated, err
		}
		updated += out.RowCount
	}
	return updated, nil
}

func (r *Runner) lockTTL() time.Duration {
	if r.cfg.LockTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.cfg.LockTTLSeconds) * time.Second
}
