package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter 정렬 집합 기반 슬라이딩 윈도우 레이트 리밋
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // 호출자 식별자 (예: "recalc:<session>")
	Limit  int           // 윈도우 내 최대 요청 수
	Window time.Duration // 윈도우 길이
}

// Decision 요청 하나에 대한 판정
type Decision struct {
	Allowed    bool
	Remaining  int           // 이 요청 이후 윈도우에 남은 횟수
	RetryAfter time.Duration // 거부 시 가장 오래된 요청이 윈도우를 벗어나기까지
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// slidingWindow 만료 항목 제거 → 카운트 → 허용 시 기록
// 반환: {허용 여부, 남은 횟수, 가장 오래된 항목 시각(ms)}
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
`)

// Allow 요청 하나를 판정하고 허용 시 윈도우에 기록
// Redis 비활성 시 항상 허용
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (Decision, error) {
	if !r.client.Enabled() {
		return Decision{Allowed: true, Remaining: cfg.Limit}, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowMs := cfg.Window.Milliseconds()

	// 같은 밀리초의 요청도 별도 항목으로 기록
	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now,
		now-windowMs,
		cfg.Limit,
		windowMs,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	d := Decision{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
	}
	if !d.Allowed {
		d.RetryAfter = retryAfter(result[2], windowMs, now)
	}
	return d, nil
}

// retryAfter 가장 오래된 항목이 만료될 때까지 남은 시간 (최소 1ms)
func retryAfter(oldestMs, windowMs, nowMs int64) time.Duration {
	wait := time.Duration(oldestMs+windowMs-nowMs) * time.Millisecond
	if wait < time.Millisecond {
		return time.Millisecond
	}
	return wait
}

// Wait blocks until a request is allowed or context is cancelled
// 거부 시 RetryAfter만큼 기다린 뒤 다시 시도
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		d, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		timer := time.NewTimer(d.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ForKey returns a copy of the config scoped to one caller
func (cfg RateLimitConfig) ForKey(suffix string) RateLimitConfig {
	cfg.Key = cfg.Key + ":" + suffix
	return cfg
}

// Predefined rate limit configs
var (
	// 세션별 재계산 요청: 분당 30회
	RecalcRateLimit = RateLimitConfig{
		Key:    "recalc",
		Limit:  30,
		Window: time.Minute,
	}

	// 벤치마크 소스 수집: 초당 5회 (인스턴스 간 공유)
	BenchmarkRateLimit = RateLimitConfig{
		Key:    "benchmark",
		Limit:  5,
		Window: time.Second,
	}
)
