package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// Probe issues one minimal read against table and reports whether it
// completed within timeout. It never returns an error and never panics: a
// backend failure, a panic in the backend and a timeout all yield false.
func Probe(ctx context.Context, b backend.Backend, table string, timeout time.Duration) bool {
	return check(ctx, b, table, timeout) == nil
}

func check(ctx context.Context, b backend.Backend, table string, timeout time.Duration) error {
	if b == nil {
		return fmt.Errorf("backend not configured")
	}
	if timeout <= 0 {
		return fmt.Errorf("invalid probe timeout %s", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the read can finish after the timeout without leaking.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe panicked: %v", r)
			}
		}()
		_, err := b.FetchMany(ctx, table, backend.FetchOptions{Limit: 1, Columns: []string{"id"}})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("probe timed out after %s: %w", timeout, ctx.Err())
	}
}

// Prober runs Probe with fixed settings and logs failures.
type Prober struct {
	backend backend.Backend
	table   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber creates a Prober reading from table.
func NewProber(b backend.Backend, table string, timeout time.Duration, logger *zap.Logger) *Prober {
	return &Prober{
		backend: b,
		table:   table,
		timeout: timeout,
		logger:  logger.Named("health"),
	}
}

// Probe reports whether the backend answered in time.
func (p *Prober) Probe(ctx context.Context) bool {
	start := time.Now()
	if err := check(ctx, p.backend, p.table, p.timeout); err != nil {
		p.logger.Warn("Backend health probe failed",
			zap.String("table", p.table),
			zap.Duration("timeout", p.timeout),
			zap.Error(err))
		return false
	}
	p.logger.Debug("Backend health probe succeeded",
		zap.String("table", p.table),
		zap.Duration("elapsed", time.Since(start)))
	return true
}
