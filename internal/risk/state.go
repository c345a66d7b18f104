package risk

import (
	"context"
	"sync"
	"time"
)

// Calculator 리스크 계산기 (Engine 또는 테스트 대역)
type Calculator interface {
	Calculate(ctx context.Context, input Input) *Bundle
}

// Snapshot 세션별 리스크 상태 조회 결과
// 계산 전이면 결과 슬라이스는 모두 nil
type Snapshot struct {
	RunID             string                   `json:"run_id,omitempty"`
	RiskMetrics       *RiskMetrics             `json:"risk_metrics"`
	Returns           []ReturnDataPoint        `json:"returns,omitempty"`
	Drawdowns         []DrawdownPoint          `json:"drawdowns,omitempty"`
	FactorRisk        *FactorRiskDecomposition `json:"factor_risk"`
	ConcentrationRisk *ConcentrationMetrics    `json:"concentration_risk"`
	StressTestResults []StressTestResult       `json:"stress_test_results"`
	Errors            map[string]string        `json:"errors,omitempty"`
	IsCalculating     bool                     `json:"is_calculating"`
	LastCalculatedAt  *time.Time               `json:"last_calculated_at"`
}

// Computed reports whether at least one calculation has completed.
func (s Snapshot) Computed() bool {
	return s.LastCalculatedAt != nil
}

// Bundle 스냅샷을 결과 묶음으로 되돌림 (계산 전이면 nil)
func (s Snapshot) Bundle() *Bundle {
	if s.LastCalculatedAt == nil {
		return nil
	}
	return &Bundle{
		RunID:         s.RunID,
		CalculatedAt:  *s.LastCalculatedAt,
		RiskMetrics:   s.RiskMetrics,
		Returns:       s.Returns,
		Drawdowns:     s.Drawdowns,
		FactorRisk:    s.FactorRisk,
		Concentration: s.ConcentrationRisk,
		StressTests:   s.StressTestResults,
		Errors:        s.Errors,
	}
}

// State 세션 하나가 소유하는 리스크 상태
// ⭐ SSOT: 전역 싱글톤 없음, 세션마다 State 하나
//
// 계산 중에 들어온 요청은 하나의 후속 실행으로 합쳐지고 (마지막 입력 사용)
// 결과 묶음은 통째로 교체됨 (부분 갱신 없음)
type State struct {
	mu          sync.Mutex
	bundle      *Bundle
	calculating bool
	pending     *Input
	listener    func(Snapshot)
}

// NewState 빈 상태 생성
func NewState() *State {
	return &State{}
}

// OnUpdate 결과 교체 시 호출될 콜백 등록 (락 밖에서 호출)
func (s *State) OnUpdate(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Snapshot 현재 상태
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Recalculate 계산 트리거
// 이미 계산 중이면 입력만 보관하고 즉시 반환 (coalesced=true)
// 그렇지 않으면 보관된 후속 요청까지 모두 처리한 뒤 최종 상태 반환
//
// 취소된 실행의 결과는 버리고 기존 상태를 유지함
// 후속 요청은 다른 요청자의 것이므로 호출자의 취소와 무관하게 실행
// 호출자의 실행이 취소되고 후속 요청도 없으면 ctx.Err() 반환
func (s *State) Recalculate(ctx context.Context, calc Calculator, input Input) (snap Snapshot, coalesced bool, err error) {
	s.mu.Lock()
	if s.calculating {
		in := input
		s.pending = &in
		snap = s.snapshotLocked()
		s.mu.Unlock()
		return snap, true, nil
	}
	s.calculating = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.calculating = false
			s.pending = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	runCtx := ctx
	current := input
	for {
		bundle := calc.Calculate(runCtx, current)
		cancelled := runCtx.Err()

		s.mu.Lock()
		if cancelled == nil {
			s.bundle = bundle
		}
		next := s.pending
		s.pending = nil
		if next == nil {
			s.calculating = false
		}
		snap = s.snapshotLocked()
		listener := s.listener
		s.mu.Unlock()

		if listener != nil && cancelled == nil {
			listener(snap)
		}
		if next == nil {
			return snap, false, cancelled
		}
		current = *next
		runCtx = context.WithoutCancel(ctx)
	}
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{IsCalculating: s.calculating}
	if s.bundle == nil {
		return snap
	}

	b := s.bundle
	at := b.CalculatedAt
	snap.RunID = b.RunID
	snap.RiskMetrics = b.RiskMetrics
	snap.Returns = b.Returns
	snap.Drawdowns = b.Drawdowns
	snap.FactorRisk = b.FactorRisk
	snap.ConcentrationRisk = b.Concentration
	snap.StressTestResults = b.StressTests
	snap.Errors = b.Errors
	snap.LastCalculatedAt = &at
	return snap
}
