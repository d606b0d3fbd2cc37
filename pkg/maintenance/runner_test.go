package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/adapters/backend/memory"
	"github.com/ekaya-inc/querybridge/pkg/apperrors"
	"github.com/ekaya-inc/querybridge/pkg/config"
	"github.com/ekaya-inc/querybridge/pkg/query"
)

var tickNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeProber struct {
	healthy bool
	calls   atomic.Int32
}

func (p *fakeProber) Probe(context.Context) bool {
	p.calls.Add(1)
	return p.healthy
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return nil, false, nil
}

type countingExecutor struct {
	Executor
	calls atomic.Int32
}

func (c *countingExecutor) Execute(ctx context.Context, text string, params []any) (*query.Result, error) {
	c.calls.Add(1)
	return c.Executor.Execute(ctx, text, params)
}

func setup(t *testing.T, healthy bool) (*Runner, *memory.Adapter, *countingExecutor) {
	t.Helper()
	mem := memory.NewAdapter(nil)
	gw := query.NewGateway(mem, zaptest.NewLogger(t), query.WithClock(func() time.Time { return tickNow }))
	exec := &countingExecutor{Executor: gw}
	r := NewRunner(exec, &fakeProber{healthy: healthy}, nil, config.MaintenanceConfig{IntervalMinutes: 60}, zaptest.NewLogger(t))
	r.now = func() time.Time { return tickNow }
	return r, mem, exec
}

func seed(t *testing.T, mem *memory.Adapter, table string, rec backend.Record) {
	t.Helper()
	_, err := mem.Insert(context.Background(), table, rec, nil)
	require.NoError(t, err)
}

func get(t *testing.T, mem *memory.Adapter, table, id string) backend.Record {
	t.Helper()
	rec, err := mem.FetchOne(context.Background(), table, backend.FetchOptions{Filters: []backend.Filter{backend.Eq("id", id)}})
	require.NoError(t, err)
	return rec
}

func TestRunStartup_BackfillsMissingActiveFlag(t *testing.T) {
	r, mem, _ := setup(t, true)
	seed(t, mem, "users", backend.Record{"id": "u1", "email": "a@example.com"})
	seed(t, mem, "users", backend.Record{"id": "u2", "email": "b@example.com", "is_active": false})
	seed(t, mem, "users", backend.Record{"id": "u3", "email": "c@example.com", "is_active": nil})

	report, err := r.RunStartup(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.UsersActivated)

	assert.Equal(t, true, get(t, mem, "users", "u1")["is_active"])
	assert.Equal(t, false, get(t, mem, "users", "u2")["is_active"])
	assert.Equal(t, true, get(t, mem, "users", "u3")["is_active"])
}

func TestRunStartup_SkippedWhenProbeFails(t *testing.T) {
	r, mem, exec := setup(t, false)
	seed(t, mem, "users", backend.Record{"id": "u1"})

	report, err := r.RunStartup(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, int32(0), exec.calls.Load())
	assert.Nil(t, get(t, mem, "users", "u1")["is_active"])
}

func TestTick_ExpiresContractsAndClearsTokens(t *testing.T) {
	r, mem, _ := setup(t, true)
	seed(t, mem, "contracts", backend.Record{"id": "k-old", "status": "active", "end_date": tickNow.Add(-24 * time.Hour)})
	seed(t, mem, "contracts", backend.Record{"id": "k-new", "status": "active", "end_date": tickNow.Add(24 * time.Hour)})
	seed(t, mem, "users", backend.Record{"id": "u-stale", "email": "s@example.com", "reset_token": "t1", "reset_token_expires": tickNow.Add(-time.Minute)})
	seed(t, mem, "users", backend.Record{"id": "u-fresh", "email": "f@example.com", "reset_token": "t2", "reset_token_expires": tickNow.Add(time.Hour)})

	report, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ContractsExpired)
	assert.Equal(t, 1, report.TokensCleared)

	assert.Equal(t, "expired", get(t, mem, "contracts", "k-old")["status"])
	assert.Equal(t, "active", get(t, mem, "contracts", "k-new")["status"])
	assert.Nil(t, get(t, mem, "users", "u-stale")["reset_token"])
	assert.Equal(t, "t2", get(t, mem, "users", "u-fresh")["reset_token"])
}

func TestTick_SkippedWhenProbeFails(t *testing.T) {
	r, _, exec := setup(t, false)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, int32(0), exec.calls.Load())
}

func TestTick_SkippedWhenLockHeld(t *testing.T) {
	r, _, exec := setup(t, true)
	r.locker = busyLocker{}

	report, err := r.Tick(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrMaintenanceLockHeld)
	assert.True(t, report.Skipped)
	assert.Equal(t, int32(0), exec.calls.Load())
}

func TestStart_DisabledInterval(t *testing.T) {
	r, _, _ := setup(t, true)
	r.cfg.IntervalMinutes = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	prober := r.prober.(*fakeProber)
	assert.Equal(t, int32(0), prober.calls.Load())
}

func TestLockTTL(t *testing.T) {
	r, _, _ := setup(t, true)
	assert.Equal(t, 5*time.Minute, r.lockTTL())
	r.cfg.LockTTLSeconds = 30
	assert.Equal(t, 30*time.Second, r.lockTTL())
}

func TestNewRedisClient_Disabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
