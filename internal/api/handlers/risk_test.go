package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/internal/portfolio"
	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/internal/scenarioconfig"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/logger"
)

const testdataDir = "../../portfolio/testdata"

type fakeSaver struct {
	mu      sync.Mutex
	records []report.SnapshotRecord
}

func (f *fakeSaver) SaveSnapshot(_ context.Context, rec report.SnapshotRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func newTestRouter(t *testing.T, loader portfolio.Loader, saver SnapshotSaver) *mux.Router {
	t.Helper()

	catalog, err := scenarioconfig.Default()
	require.NoError(t, err)
	hash, err := scenarioconfig.Hash(catalog)
	require.NoError(t, err)
	scenarios, err := catalog.StressScenarios()
	require.NoError(t, err)

	cfg := risk.DefaultEngineConfig()
	cfg.Scenarios = scenarios
	engine, err := risk.NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)

	registry := session.NewRegistry(session.Options{Calculator: engine, Logger: zerolog.Nop()})
	h := NewRiskHandler(registry, loader, saver, catalog, hash, logger.Nop())

	r := mux.NewRouter()
	r.HandleFunc("/api/risk/scenarios", h.GetScenarios).Methods(http.MethodGet)
	r.HandleFunc("/api/risk/sessions/{session}", h.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/risk/sessions/{session}/report", h.GetReport).Methods(http.MethodGet)
	r.HandleFunc("/api/risk/sessions/{session}/calculate", h.Calculate).Methods(http.MethodPost)
	r.HandleFunc("/api/risk/sessions/{session}/portfolios/{portfolio}/recalculate", h.Recalculate).Methods(http.MethodPost)
	return r
}

func alphaDataset(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(testdataDir + "/alpha.json")
	require.NoError(t, err)
	return data
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetScenarios(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := do(r, http.MethodGet, "/api/risk/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScenariosResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Scenarios)
	assert.Len(t, resp.Hash, 64)
}

func TestCalculate_ThenGetSession(t *testing.T) {
	saver := &fakeSaver{}
	r := newTestRouter(t, nil, saver)

	rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/calculate", alphaDataset(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.NotNil(t, snap["risk_metrics"])
	assert.NotNil(t, snap["factor_risk"])
	assert.NotNil(t, snap["concentration_risk"])
	assert.Equal(t, false, snap["is_calculating"])

	require.Len(t, saver.records, 1)
	assert.Equal(t, "desk-1", saver.records[0].SessionID)
	assert.Equal(t, "alpha", saver.records[0].PortfolioID)
	assert.NotEmpty(t, saver.records[0].CatalogHash)

	rec = do(r, http.MethodGet, "/api/risk/sessions/desk-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/risk/sessions/desk-1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "Risk Report")
}

func TestCalculate_BadRequests(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	t.Run("malformed json", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/calculate", []byte("{"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/calculate", []byte(`{"portfolio":"x"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid session id", func(t *testing.T) {
		long := strings.Repeat("s", 65)
		rec := do(r, http.MethodPost, "/api/risk/sessions/"+long+"/calculate", alphaDataset(t))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body := bytes.Repeat([]byte(" "), maxBodyBytes+1)
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/calculate", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestGetSession_NotFound(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := do(r, http.MethodGet, "/api/risk/sessions/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/risk/sessions/nobody/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecalculate(t *testing.T) {
	t.Run("no loader", func(t *testing.T) {
		r := newTestRouter(t, nil, nil)
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/portfolios/alpha/recalculate", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	r := newTestRouter(t, portfolio.DirLoader{Dir: testdataDir}, nil)

	t.Run("stored portfolio", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-2/portfolios/alpha/recalculate", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var snap risk.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.RiskMetrics)
		assert.Equal(t, 35, snap.RiskMetrics.SampleCount)
		assert.NotEmpty(t, snap.StressTestResults)
	})

	t.Run("unknown portfolio", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/risk/sessions/desk-2/portfolios/missing/recalculate", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCalculate_ClientGoneKeepsSession(t *testing.T) {
	saver := &fakeSaver{}
	r := newTestRouter(t, nil, saver)

	rec := do(r, http.MethodPost, "/api/risk/sessions/desk-1/calculate", alphaDataset(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/risk/sessions/desk-1/calculate",
		bytes.NewReader(alphaDataset(t))).WithContext(ctx)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Len(t, saver.records, 1)

	rec = do(r, http.MethodGet, "/api/risk/sessions/desk-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.NotNil(t, snap["risk_metrics"])
	assert.Empty(t, snap["errors"])
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1100*time.Millisecond))
	assert.Equal(t, 40, retryAfterSeconds(40*time.Second))
}
