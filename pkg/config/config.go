package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (비어 있으면 파일 기반으로만 동작)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Risk engine
	Risk RiskConfig

	// Benchmark level source
	Benchmark BenchmarkConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RiskConfig holds risk engine and recalculation settings
type RiskConfig struct {
	RiskFreeRate   float64 // 연 무위험 수익률 (%)
	RollingWindow  int     // 롤링 지표 윈도우 (월)
	ScenarioFile   string  // 비어 있으면 내장 카탈로그
	DatasetDir     string  // DB 미설정 시 <dir>/<portfolio_id>.json 사용
	RecalcSchedule string  // cron 표현식 (초 포함)
	PortfolioIDs   []string
	SnapshotTTL    time.Duration // Redis 스냅샷 미러 TTL
}

// BenchmarkConfig holds benchmark level scraper settings
type BenchmarkConfig struct {
	Symbol     string // 지수 코드 (예: KOSPI)
	SourceURL  string
	RatePerSec float64
	Timeout    time.Duration
	Schedule   string        // 수집 cron 표현식 (초 포함)
	Lookback   time.Duration // 수집 기간
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Risk
		Risk: RiskConfig{
			RiskFreeRate:   getEnvAsFloat("RISK_FREE_RATE", 0),
			RollingWindow:  getEnvAsInt("RISK_ROLLING_WINDOW", 12),
			ScenarioFile:   getEnv("RISK_SCENARIO_FILE", ""),
			DatasetDir:     getEnv("RISK_DATASET_DIR", "data"),
			RecalcSchedule: getEnv("RISK_RECALC_SCHEDULE", "0 30 18 * * 1-5"),
			PortfolioIDs:   getEnvAsList("RISK_PORTFOLIO_IDS"),
			SnapshotTTL:    getEnvAsDuration("RISK_SNAPSHOT_TTL", "24h"),
		},

		// Benchmark
		Benchmark: BenchmarkConfig{
			Symbol:     getEnv("BENCHMARK_SYMBOL", "KOSPI"),
			SourceURL:  getEnv("BENCHMARK_SOURCE_URL", "https://finance.naver.com/sise/sise_index_day.naver"),
			RatePerSec: getEnvAsFloat("BENCHMARK_RATE_PER_SEC", 2),
			Timeout:    getEnvAsDuration("BENCHMARK_TIMEOUT", "10s"),
			Schedule:   getEnv("BENCHMARK_SCHEDULE", "0 0 18 * * 1-5"),
			Lookback:   getEnvAsDuration("BENCHMARK_LOOKBACK", "2160h"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Risk.RollingWindow < 2 {
		return fmt.Errorf("RISK_ROLLING_WINDOW must be >= 2")
	}

	if c.Benchmark.RatePerSec <= 0 {
		return fmt.Errorf("BENCHMARK_RATE_PER_SEC must be > 0")
	}

	return nil
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	out := make([]string, 0)
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
