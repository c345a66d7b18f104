package risk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingCalc 첫 호출을 release까지 붙잡는 계산기
type blockingCalc struct {
	mu      sync.Mutex
	inputs  []string
	started chan struct{}
	release chan struct{}
}

func newBlockingCalc() *blockingCalc {
	return &blockingCalc{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *blockingCalc) Calculate(_ context.Context, in Input) *Bundle {
	c.mu.Lock()
	c.inputs = append(c.inputs, in.Holdings[0].Ticker)
	n := len(c.inputs)
	c.mu.Unlock()

	if n == 1 {
		close(c.started)
		<-c.release
	}
	return &Bundle{
		RunID:        fmt.Sprintf("run-%d", n),
		CalculatedAt: time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC),
		Errors:       map[string]string{},
	}
}

func (c *blockingCalc) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.inputs...)
}

func inputFor(ticker string) Input {
	return Input{Holdings: []Holding{{Ticker: ticker, PortfolioWeight: 1}}}
}

func TestState_EmptyBeforeFirstCalculation(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()

	assert.False(t, snap.Computed())
	assert.False(t, snap.IsCalculating)
	assert.Nil(t, snap.RiskMetrics)
	assert.Nil(t, snap.LastCalculatedAt)
	assert.Nil(t, snap.Bundle())
}

func TestState_RecalculateReplacesSnapshot(t *testing.T) {
	s := NewState()
	e := newTestEngine(t)

	snap, coalesced, err := s.Recalculate(context.Background(), e, fullInput())
	require.NoError(t, err)
	assert.False(t, coalesced)
	assert.True(t, snap.Computed())
	assert.False(t, snap.IsCalculating)
	assert.NotNil(t, snap.RiskMetrics)
	assert.NotNil(t, snap.ConcentrationRisk)

	b := snap.Bundle()
	require.NotNil(t, b)
	assert.Equal(t, snap.RunID, b.RunID)
	assert.Equal(t, *snap.LastCalculatedAt, b.CalculatedAt)
	assert.Same(t, snap.ConcentrationRisk, b.Concentration)

	first := snap.RunID
	snap, _, err = s.Recalculate(context.Background(), e, fullInput())
	require.NoError(t, err)
	assert.NotEqual(t, first, snap.RunID)
	assert.Equal(t, snap.RunID, s.Snapshot().RunID)
}

func TestState_CoalescesTriggersWhileCalculating(t *testing.T) {
	s := NewState()
	calc := newBlockingCalc()

	var updates []string
	var updMu sync.Mutex
	s.OnUpdate(func(snap Snapshot) {
		updMu.Lock()
		defer updMu.Unlock()
		updates = append(updates, snap.RunID)
	})

	done := make(chan Snapshot)
	go func() {
		snap, coalesced, err := s.Recalculate(context.Background(), calc, inputFor("first"))
		assert.NoError(t, err)
		assert.False(t, coalesced)
		done <- snap
	}()
	<-calc.started

	snap, coalesced, err := s.Recalculate(context.Background(), calc, inputFor("second"))
	require.NoError(t, err)
	assert.True(t, coalesced)
	assert.True(t, snap.IsCalculating)
	assert.False(t, snap.Computed())

	_, coalesced, _ = s.Recalculate(context.Background(), calc, inputFor("third"))
	assert.True(t, coalesced)

	close(calc.release)

	select {
	case final := <-done:
		// 후속 실행은 한 번, 마지막 입력 사용
		assert.Equal(t, []string{"first", "third"}, calc.calls())
		assert.Equal(t, "run-2", final.RunID)
		assert.False(t, final.IsCalculating)
	case <-time.After(5 * time.Second):
		t.Fatal("recalculation did not finish")
	}

	assert.False(t, s.Snapshot().IsCalculating)
	updMu.Lock()
	assert.Equal(t, []string{"run-1", "run-2"}, updates)
	updMu.Unlock()
}

type panicCalc struct{}

func (panicCalc) Calculate(context.Context, Input) *Bundle {
	panic("boom")
}

func TestState_PanicResetsCalculatingFlag(t *testing.T) {
	s := NewState()

	require.Panics(t, func() {
		s.Recalculate(context.Background(), panicCalc{}, Input{})
	})
	assert.False(t, s.Snapshot().IsCalculating)

	snap, coalesced, err := s.Recalculate(context.Background(), newTestEngine(t), fullInput())
	require.NoError(t, err)
	assert.False(t, coalesced)
	assert.True(t, snap.Computed())
}

func TestState_CancelledRunKeepsPreviousState(t *testing.T) {
	s := NewState()
	e := newTestEngine(t)

	var updates int
	s.OnUpdate(func(Snapshot) { updates++ })

	first, _, err := s.Recalculate(context.Background(), e, fullInput())
	require.NoError(t, err)
	require.NotNil(t, first.RiskMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, coalesced, err := s.Recalculate(ctx, e, fullInput())

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, coalesced)
	assert.Equal(t, first.RunID, snap.RunID)
	assert.NotNil(t, snap.RiskMetrics)
	assert.Empty(t, snap.Errors)
	assert.False(t, snap.IsCalculating)
	assert.Equal(t, first.RunID, s.Snapshot().RunID)
	assert.Equal(t, 1, updates)
}

// cancellingCalc 첫 호출 중 호출자 컨텍스트를 취소하고, 받은 컨텍스트 상태를 기록
type cancellingCalc struct {
	*blockingCalc
	cancel  context.CancelFunc
	ctxErrs []error
	errMu   sync.Mutex
}

func (c *cancellingCalc) Calculate(ctx context.Context, in Input) *Bundle {
	b := c.blockingCalc.Calculate(ctx, in)
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if len(c.ctxErrs) == 0 {
		c.cancel()
	}
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	return b
}

func TestState_FollowUpRunsAfterCallerCancels(t *testing.T) {
	s := NewState()
	ctx, cancel := context.WithCancel(context.Background())
	calc := &cancellingCalc{blockingCalc: newBlockingCalc(), cancel: cancel}

	var updates []string
	var updMu sync.Mutex
	s.OnUpdate(func(snap Snapshot) {
		updMu.Lock()
		defer updMu.Unlock()
		updates = append(updates, snap.RunID)
	})

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result)
	go func() {
		snap, _, err := s.Recalculate(ctx, calc, inputFor("first"))
		done <- result{snap, err}
	}()
	<-calc.started

	_, coalesced, err := s.Recalculate(context.Background(), calc, inputFor("second"))
	require.NoError(t, err)
	require.True(t, coalesced)
	close(calc.release)

	select {
	case res := <-done:
		// 취소된 첫 실행은 버려지고 후속 요청은 취소되지 않은 컨텍스트로 실행
		require.NoError(t, res.err)
		assert.Equal(t, "run-2", res.snap.RunID)
		assert.Equal(t, []string{"first", "second"}, calc.calls())
		calc.errMu.Lock()
		assert.Equal(t, []error{context.Canceled, nil}, calc.ctxErrs)
		calc.errMu.Unlock()
	case <-time.After(5 * time.Second):
		t.Fatal("recalculation did not finish")
	}

	assert.Equal(t, "run-2", s.Snapshot().RunID)
	updMu.Lock()
	assert.Equal(t, []string{"run-2"}, updates)
	updMu.Unlock()
}
