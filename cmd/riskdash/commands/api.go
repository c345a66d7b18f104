package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/riskdash/internal/api"
	"github.com/wonny/riskdash/internal/api/handlers"
	"github.com/wonny/riskdash/internal/report"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API + WebSocket 서버를 시작합니다.

Endpoints:
  GET  /health                                                  - Health check
  GET  /metrics                                                 - Prometheus metrics
  GET  /api/risk/scenarios                                      - 스트레스 시나리오 카탈로그
  POST /api/risk/sessions/{session}/calculate                   - 데이터셋으로 계산
  POST /api/risk/sessions/{session}/portfolios/{id}/recalculate - 저장된 포트폴리오 재계산
  GET  /api/risk/sessions/{session}                             - 세션 리스크 상태
  GET  /api/risk/sessions/{session}/report                      - 텍스트 리포트
  GET  /ws/risk?session={session}                               - 상태 변경 push

Example:
  go run ./cmd/riskdash api
  go run ./cmd/riskdash api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Config, logger, catalog, backends
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Override port if flag is set
	if apiPort != "" {
		rt.cfg.Port = apiPort
	}
	log := rt.log

	// 2. Schema + persistence (optional)
	var saver handlers.SnapshotSaver
	var dbHealth api.HealthChecker
	if rt.db != nil {
		if err := rt.db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		saver = report.NewRepository(rt.db.Pool)
		dbHealth = rt.db
	}

	// 3. Session registry + hub
	registry, err := rt.registry()
	if err != nil {
		return err
	}
	hub := api.NewHub(registry, log).WithRecorder(rt.recorder)

	// 4. Router + server
	riskHandler := handlers.NewRiskHandler(registry, rt.loader(), saver, rt.catalog, rt.catalogHash, log)
	deps := api.RouterDeps{
		Risk:     riskHandler,
		Hub:      hub,
		Recorder: rt.recorder,
		DB:       dbHealth,
		Logger:   log,
	}
	if rt.cfg.MetricsEnabled {
		deps.Metrics = rt.recorder.Handler()
	}
	server := api.New(rt.cfg, log, api.NewRouter(deps))

	// 5. Run server, hub and (optionally) scheduler together
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if apiWithScheduler {
		sched, err := buildScheduler(rt, registry)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		g.Go(func() error {
			sched.Start()
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	out := cmd.OutOrStdout()
	PrintSuccess(out, fmt.Sprintf("Server running on http://localhost:%s", rt.cfg.Port))
	if apiWithScheduler {
		PrintInfo(out, "Scheduler running in-process")
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
