package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/pkg/redis"
)

var (
	// ErrRateLimited 세션 재계산 요청 한도 초과
	ErrRateLimited = errors.New("recalculation rate limit exceeded")

	// ErrInvalidSessionID 세션 ID 형식 오류
	ErrInvalidSessionID = errors.New("invalid session id")
)

// RateLimitedError 한도 초과 세션과 재시도 가능 시점
type RateLimitedError struct {
	SessionID  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: session %s, retry after %s", ErrRateLimited, e.SessionID, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateID 세션 ID 검사 (Redis 키/채널에 그대로 사용되므로 문자 제한)
func ValidateID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Trigger 재계산 요청 출처 (메트릭 라벨)
type Trigger string

const (
	TriggerAPI       Trigger = "api"
	TriggerScheduler Trigger = "scheduler"
	TriggerCLI       Trigger = "cli"
)

// Update 세션 상태 변경 알림
type Update struct {
	SessionID string        `json:"session_id"`
	Snapshot  risk.Snapshot `json:"snapshot"`
}

// Recorder 세션 레벨 관측 (선택)
type Recorder interface {
	RecordRecalculation(trigger string, coalesced bool)
	SetSessions(n int)
}

// Options Registry 구성 요소
// Redis 클라이언트가 비활성화 상태면 미러/발행/레이트 리밋은 no-op
type Options struct {
	Calculator  risk.Calculator
	Redis       *redis.Client
	Prefix      string
	SnapshotTTL time.Duration
	RateLimit   *redis.RateLimitConfig
	Recorder    Recorder
	Logger      zerolog.Logger
}

// Registry 세션별 리스크 상태 보관소
// ⭐ SSOT: 세션 하나당 risk.State 하나, 전역 싱글톤 없음
type Registry struct {
	calc     risk.Calculator
	client   *redis.Client
	cache    *redis.Cache
	limiter  *redis.RateLimiter
	limit    *redis.RateLimitConfig
	prefix   string
	ttl      time.Duration
	recorder Recorder
	log      zerolog.Logger

	mu          sync.RWMutex
	states      map[string]*risk.State
	subscribers map[int]func(Update)
	nextSubID   int
}

// NewRegistry creates a new session registry
func NewRegistry(opts Options) *Registry {
	if opts.Prefix == "" {
		opts.Prefix = "riskdash"
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = redis.TTLSnapshot
	}

	r := &Registry{
		calc:        opts.Calculator,
		client:      opts.Redis,
		limit:       opts.RateLimit,
		prefix:      opts.Prefix,
		ttl:         opts.SnapshotTTL,
		recorder:    opts.Recorder,
		log:         opts.Logger.With().Str("component", "session.registry").Logger(),
		states:      make(map[string]*risk.State),
		subscribers: make(map[int]func(Update)),
	}
	if r.client != nil {
		r.cache = redis.NewCache(r.client, r.prefix)
		r.limiter = redis.NewRateLimiter(r.client, r.prefix)
	}
	return r
}

// State 세션 상태 (없으면 생성)
func (r *Registry) State(id string) *risk.State {
	r.mu.RLock()
	st, ok := r.states[id]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		return st
	}

	st = risk.NewState()
	st.OnUpdate(func(snap risk.Snapshot) {
		r.publish(id, snap)
	})
	r.states[id] = st
	if r.recorder != nil {
		r.recorder.SetSessions(len(r.states))
	}
	return st
}

// Calculate 세션 재계산
// 이미 계산 중이면 입력만 갱신하고 coalesced=true로 즉시 반환
func (r *Registry) Calculate(ctx context.Context, id string, input risk.Input, trigger Trigger) (risk.Snapshot, bool, error) {
	if err := ValidateID(id); err != nil {
		return risk.Snapshot{}, false, err
	}

	if r.limiter != nil && r.limit != nil {
		d, err := r.limiter.Allow(ctx, r.limit.ForKey(id))
		if err != nil {
			// Redis 장애 시 요청은 통과시킴
			r.log.Warn().Err(err).Str("session", id).Msg("Rate limiter unavailable")
		} else if !d.Allowed {
			return risk.Snapshot{}, false, &RateLimitedError{SessionID: id, RetryAfter: d.RetryAfter}
		}
	}

	snap, coalesced, err := r.State(id).Recalculate(ctx, r.calc, input)
	if err != nil {
		// 취소된 계산은 기존 상태를 유지
		return snap, false, fmt.Errorf("recalculate session %s: %w", id, err)
	}
	if r.recorder != nil {
		r.recorder.RecordRecalculation(string(trigger), coalesced)
	}

	r.log.Debug().
		Str("session", id).
		Str("trigger", string(trigger)).
		Bool("coalesced", coalesced).
		Msg("Recalculation handled")

	return snap, coalesced, nil
}

// Lookup 세션 스냅샷 조회
// 메모리에 없으면 Redis 미러(다른 인스턴스가 계산한 결과)를 확인
func (r *Registry) Lookup(ctx context.Context, id string) (risk.Snapshot, bool) {
	r.mu.RLock()
	st, ok := r.states[id]
	r.mu.RUnlock()
	if ok {
		snap := st.Snapshot()
		if snap.Computed() || snap.IsCalculating {
			return snap, true
		}
	}

	if r.cache == nil {
		return risk.Snapshot{}, false
	}

	var snap risk.Snapshot
	found, err := r.cache.Get(ctx, redis.SnapshotKey(id), &snap)
	if err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Snapshot mirror read failed")
		return risk.Snapshot{}, false
	}
	return snap, found
}

// Sessions 메모리에 있는 세션 ID 목록
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	return ids
}

// Subscribe 상태 변경 구독, 반환된 함수로 해제
func (r *Registry) Subscribe(fn func(Update)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// publish 결과 교체 시 구독자 알림 + Redis 미러/발행
func (r *Registry) publish(id string, snap risk.Snapshot) {
	update := Update{SessionID: id, Snapshot: snap}

	r.mu.RLock()
	subs := make([]func(Update), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	r.mu.RUnlock()

	for _, fn := range subs {
		fn(update)
	}

	if r.cache == nil || !r.client.Enabled() {
		return
	}

	// 요청 컨텍스트와 분리 (요청이 끝나도 미러는 완료)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.cache.Set(ctx, redis.SnapshotKey(id), snap, r.ttl); err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Snapshot mirror write failed")
	}

	payload, err := json.Marshal(update)
	if err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Snapshot encode failed")
		return
	}
	if err := r.client.Publish(ctx, redis.SnapshotChannel(r.prefix, id), payload); err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Snapshot publish failed")
	}
}
