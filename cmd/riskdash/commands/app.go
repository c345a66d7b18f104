package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/riskdash/internal/portfolio"
	"github.com/wonny/riskdash/internal/report"
	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/internal/scenarioconfig"
	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/database"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
	"github.com/wonny/riskdash/pkg/redis"
)

// errNoDatabase 저장소가 필요한 명령에서 DATABASE_URL 미설정
var errNoDatabase = errors.New("DATABASE_URL is not set")

// app 명령 공통 의존성
// ⭐ SSOT: 설정/로거/카탈로그/DB/Redis 초기화는 여기서만
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	catalog     *scenarioconfig.Catalog
	catalogHash string
	db          *database.DB // nil이면 파일 기반 동작
	redis       *redis.Client
	recorder    *metrics.Recorder
}

// bootstrap loads config and opens optional backends
func bootstrap(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Stress scenario catalog
	catalog, _, err := scenarioconfig.Load(cfg.Risk.ScenarioFile)
	if err != nil {
		return nil, fmt.Errorf("load scenario catalog: %w", err)
	}
	hash, err := scenarioconfig.Hash(catalog)
	if err != nil {
		return nil, fmt.Errorf("hash scenario catalog: %w", err)
	}

	rt := &app{
		cfg:         cfg,
		log:         log,
		catalog:     catalog,
		catalogHash: hash,
		recorder:    metrics.NewRecorder(),
	}

	// 4. Database (optional)
	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Debug("Database not configured, using dataset files")
	case err != nil:
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		rt.db = db
	}

	// 5. Redis (disabled client is a no-op)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	rt.redis = rc

	log.WithFields(map[string]interface{}{
		"env":          cfg.Env,
		"database":     rt.db != nil,
		"redis":        rc.Enabled(),
		"catalog":      catalog.Version,
		"catalog_hash": hash[:12],
	}).Debug("Runtime initialized")

	return rt, nil
}

// Close releases backend connections
func (rt *app) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

// engine builds a risk engine from config and catalog
func (rt *app) engine() (*risk.Engine, error) {
	scenarios, err := rt.catalog.StressScenarios()
	if err != nil {
		return nil, fmt.Errorf("stress scenarios: %w", err)
	}

	engineCfg := risk.EngineConfig{
		RiskFreeRate:  rt.cfg.Risk.RiskFreeRate,
		RollingWindow: rt.cfg.Risk.RollingWindow,
		Scenarios:     scenarios,
	}
	engine, err := risk.NewEngine(engineCfg, rt.log.Component("risk"))
	if err != nil {
		return nil, fmt.Errorf("create risk engine: %w", err)
	}
	return engine.WithRecorder(rt.recorder), nil
}

// registry builds a session registry around a fresh engine
func (rt *app) registry() (*session.Registry, error) {
	engine, err := rt.engine()
	if err != nil {
		return nil, err
	}

	limit := redis.RecalcRateLimit
	return session.NewRegistry(session.Options{
		Calculator:  engine,
		Redis:       rt.redis,
		SnapshotTTL: rt.cfg.Risk.SnapshotTTL,
		RateLimit:   &limit,
		Recorder:    rt.recorder,
		Logger:      rt.log.Component("session"),
	}), nil
}

// loader DB가 있으면 DB, 없으면 데이터셋 디렉터리
func (rt *app) loader() portfolio.Loader {
	if rt.db != nil {
		return portfolio.NewRepository(rt.db.Pool)
	}
	return portfolio.DirLoader{Dir: rt.cfg.Risk.DatasetDir}
}

// portfolioRepo DB 전용 저장소
func (rt *app) portfolioRepo() (*portfolio.Repository, error) {
	if rt.db == nil {
		return nil, errNoDatabase
	}
	return portfolio.NewRepository(rt.db.Pool), nil
}

// reportRepo DB 전용 저장소
func (rt *app) reportRepo() (*report.Repository, error) {
	if rt.db == nil {
		return nil, errNoDatabase
	}
	return report.NewRepository(rt.db.Pool), nil
}

// loadInput --file 또는 --portfolio 중 하나로 입력 로드
// 반환된 ID는 파일의 portfolio_id 또는 --portfolio 값
func (rt *app) loadInput(ctx context.Context, file, portfolioID string) (risk.Input, string, error) {
	switch {
	case file != "" && portfolioID != "":
		return risk.Input{}, "", errors.New("use either --file or --portfolio, not both")
	case file != "":
		ds, err := portfolio.LoadDatasetFile(file)
		if err != nil {
			return risk.Input{}, "", err
		}
		input, err := ds.Input()
		return input, ds.PortfolioID, err
	case portfolioID != "":
		input, err := rt.loader().LoadInput(ctx, portfolioID)
		return input, portfolioID, err
	default:
		return risk.Input{}, "", errors.New("one of --file or --portfolio is required")
	}
}
