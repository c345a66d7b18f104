package handlers

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/riskdash/internal/portfolio"
	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/internal/scenarioconfig"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/logger"
)

// SnapshotSaver 계산 결과 저장소 (선택)
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, rec report.SnapshotRecord) error
}

// RiskHandler handles risk API endpoints
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	registry    *session.Registry
	loader      portfolio.Loader
	saver       SnapshotSaver
	catalog     *scenarioconfig.Catalog
	catalogHash string
	logger      *logger.Logger
}

// NewRiskHandler creates a new risk handler
// loader와 saver는 nil 허용 (DB/데이터셋 디렉터리 미설정)
func NewRiskHandler(
	registry *session.Registry,
	loader portfolio.Loader,
	saver SnapshotSaver,
	catalog *scenarioconfig.Catalog,
	catalogHash string,
	log *logger.Logger,
) *RiskHandler {
	return &RiskHandler{
		registry:    registry,
		loader:      loader,
		saver:       saver,
		catalog:     catalog,
		catalogHash: catalogHash,
		logger:      log,
	}
}

// ScenariosResponse 시나리오 카탈로그 응답
type ScenariosResponse struct {
	Version   string                    `json:"version"`
	Hash      string                    `json:"hash"`
	Scenarios []scenarioconfig.Scenario `json:"scenarios"`
}

// GetScenarios returns the stress scenario catalog
// GET /api/risk/scenarios
func (h *RiskHandler) GetScenarios(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ScenariosResponse{
		Version:   h.catalog.Version,
		Hash:      h.catalogHash,
		Scenarios: h.catalog.Scenarios,
	})
}

// Calculate runs a calculation for the dataset in the request body
// POST /api/risk/sessions/{session}/calculate
// 200: 계산 완료, 202: 진행 중인 계산에 합쳐짐
func (h *RiskHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodyBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "dataset too large")
		return
	}

	ds, err := portfolio.ParseDataset(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	input, err := ds.Input()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.calculate(w, r, sessionID, ds.PortfolioID, input)
}

// Recalculate loads a stored portfolio and recalculates the session
// POST /api/risk/sessions/{session}/portfolios/{portfolio}/recalculate
func (h *RiskHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, portfolioID := vars["session"], vars["portfolio"]

	if h.loader == nil {
		respondError(w, http.StatusServiceUnavailable, "portfolio storage not configured")
		return
	}

	input, err := h.loader.LoadInput(r.Context(), portfolioID)
	switch {
	case errors.Is(err, portfolio.ErrPortfolioNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, portfolio.ErrInvalidDataset):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.WithError(err).WithField("portfolio", portfolioID).Error("Failed to load portfolio")
		respondError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	h.calculate(w, r, sessionID, portfolioID, input)
}

func (h *RiskHandler) calculate(w http.ResponseWriter, r *http.Request, sessionID, portfolioID string, input risk.Input) {
	snap, coalesced, err := h.registry.Calculate(r.Context(), sessionID, input, session.TriggerAPI)
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrRateLimited):
		var limited *session.RateLimitedError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limited.RetryAfter)))
		}
		respondError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// 클라이언트 이탈, 기존 상태는 유지됨
		h.logger.WithField("session", sessionID).Debug("Calculation cancelled")
		respondError(w, http.StatusServiceUnavailable, "calculation cancelled")
		return
	case err != nil:
		h.logger.WithError(err).WithField("session", sessionID).Error("Calculation failed")
		respondError(w, http.StatusInternalServerError, "calculation failed")
		return
	}

	if coalesced {
		respondJSON(w, http.StatusAccepted, snap)
		return
	}

	if h.saver != nil && snap.Computed() {
		if err := h.saver.SaveSnapshot(r.Context(), report.SnapshotRecord{
			SessionID:   sessionID,
			PortfolioID: portfolioID,
			CatalogHash: h.catalogHash,
			Bundle:      snap.Bundle(),
		}); err != nil {
			// 저장 실패는 응답을 막지 않음
			h.logger.WithError(err).WithField("session", sessionID).Warn("Failed to persist snapshot")
		}
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetSession returns the session's risk state
// GET /api/risk/sessions/{session}
func (h *RiskHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]
	if err := session.ValidateID(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, found := h.registry.Lookup(r.Context(), sessionID)
	if !found {
		respondError(w, http.StatusNotFound, "no risk state for session "+sessionID)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetReport returns a plain-text summary of the session's latest result
// GET /api/risk/sessions/{session}/report
func (h *RiskHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]

	snap, found := h.registry.Lookup(r.Context(), sessionID)
	if !found || !snap.Computed() {
		respondError(w, http.StatusNotFound, "no risk state for session "+sessionID)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.New(snap.Bundle(), "").ToSummary())
}

// retryAfterSeconds Retry-After 헤더 값 (올림, 최소 1초)
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
