package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Publish(context.Background(), "ch", []byte("{}")))
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	d, err := limiter.Allow(context.Background(), RecalcRateLimit.ForKey("desk-1"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, RecalcRateLimit.Limit, d.Remaining)
	assert.Zero(t, d.RetryAfter)

	assert.NoError(t, limiter.Wait(context.Background(), RecalcRateLimit))
}

func TestRetryAfter(t *testing.T) {
	// 가장 오래된 요청 1000ms, 윈도우 60s, 현재 21000ms → 40s 후
	assert.Equal(t, 40*time.Second, retryAfter(1000, 60000, 21000))
	// 이미 만료된 항목은 최소 대기
	assert.Equal(t, time.Millisecond, retryAfter(1000, 60000, 90000))
}

func TestRateLimitConfig_ForKey(t *testing.T) {
	cfg := RecalcRateLimit.ForKey("desk-1")
	assert.Equal(t, "recalc:desk-1", cfg.Key)
	assert.Equal(t, "recalc", RecalcRateLimit.Key)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "risk:snapshot:desk-1", SnapshotKey("desk-1"))
	assert.Equal(t, "riskdash:risk:updates:desk-1", SnapshotChannel("riskdash", "desk-1"))
	assert.Equal(t, "benchmark:KOSPI:page:3", BenchmarkKey("KOSPI", 3))
}

func TestIntegration_CacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping integration test")
	}

	client := NewFromRedis(goredis.NewClient(&goredis.Options{Addr: addr}))
	defer client.Close()

	ctx := context.Background()
	cache := NewCache(client, "riskdash-test")

	type payload struct {
		RunID string  `json:"run_id"`
		VaR   float64 `json:"var"`
	}
	require.NoError(t, cache.Set(ctx, SnapshotKey("it"), payload{RunID: "r1", VaR: 4.2}, time.Minute))

	var got payload
	found, err := cache.Get(ctx, SnapshotKey("it"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "r1", got.RunID)

	limiter := NewRateLimiter(client, "riskdash-test")
	cfg := RateLimitConfig{Key: "it-" + time.Now().Format("150405.000"), Limit: 2, Window: time.Minute}
	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1-i, d.Remaining)
	}
	d, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Greater(t, d.RetryAfter, 50*time.Second)
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}
