package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/riskdash/internal/portfolio"
	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/logger"
)

// SnapshotSaver 계산 결과 저장소 (report.Repository)
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, rec report.SnapshotRecord) error
}

// RecalculateJob 설정된 포트폴리오의 리스크를 주기적으로 재계산
// 포트폴리오 ID를 세션 ID로 사용
type RecalculateJob struct {
	registry     *session.Registry
	loader       portfolio.Loader
	saver        SnapshotSaver
	portfolioIDs []string
	catalogHash  string
	schedule     string
	logger       *logger.Logger
}

// NewRecalculateJob creates a new recalculation job
func NewRecalculateJob(
	registry *session.Registry,
	loader portfolio.Loader,
	portfolioIDs []string,
	schedule string,
	log *logger.Logger,
) *RecalculateJob {
	return &RecalculateJob{
		registry:     registry,
		loader:       loader,
		portfolioIDs: portfolioIDs,
		schedule:     schedule,
		logger:       log,
	}
}

// WithSaver 결과 저장 설정 (catalogHash는 스냅샷 추적용)
func (j *RecalculateJob) WithSaver(saver SnapshotSaver, catalogHash string) *RecalculateJob {
	j.saver = saver
	j.catalogHash = catalogHash
	return j
}

// Name returns the job name
func (j *RecalculateJob) Name() string {
	return "risk_recalculate"
}

// Schedule returns the cron schedule
func (j *RecalculateJob) Schedule() string {
	return j.schedule
}

// Run recalculates every configured portfolio
// 한 포트폴리오 실패가 나머지를 막지 않음
func (j *RecalculateJob) Run(ctx context.Context) error {
	var errs []error
	done := 0

	for _, id := range j.portfolioIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.recalculate(ctx, id); err != nil {
			j.logger.WithFields(map[string]interface{}{
				"portfolio": id,
				"error":     err.Error(),
			}).Warn("Portfolio recalculation failed")
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		done++
	}

	j.logger.WithFields(map[string]interface{}{
		"total":     len(j.portfolioIDs),
		"succeeded": done,
	}).Info("Scheduled recalculation finished")

	return errors.Join(errs...)
}

func (j *RecalculateJob) recalculate(ctx context.Context, portfolioID string) error {
	input, err := j.loader.LoadInput(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	snap, coalesced, err := j.registry.Calculate(ctx, portfolioID, input, session.TriggerScheduler)
	if err != nil {
		return err
	}
	// 다른 요청이 계산 중이면 그쪽 결과가 최신
	if coalesced || j.saver == nil || !snap.Computed() {
		return nil
	}

	if err := j.saver.SaveSnapshot(ctx, report.SnapshotRecord{
		SessionID:   portfolioID,
		PortfolioID: portfolioID,
		CatalogHash: j.catalogHash,
		Bundle:      snap.Bundle(),
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
