//go:build integration

package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/querybridge/pkg/config"
	"github.com/ekaya-inc/querybridge/pkg/testhelpers"
)

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()

	first := NewRedisLocker(testRedis.Client)
	second := NewRedisLocker(testRedis.Client)

	release, ok, err := first.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock must be exclusive")

	release(ctx)

	release2, ok, err := second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release2(ctx)
}

func TestRedisLocker_StaleReleaseKeepsSuccessor(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()
	locker := NewRedisLocker(testRedis.Client)

	staleRelease, ok, err := locker.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(150 * time.Millisecond)

	_, ok, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	staleRelease(ctx)

	exists, err := testRedis.Client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "expired holder must not release the successor's lock")
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client, "empty host disables redis")

	testRedis := testhelpers.GetTestRedis(t)
	client, err = NewRedisClient(context.Background(), &config.RedisConfig{Host: testRedis.Host, Port: testRedis.Port})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()
}
