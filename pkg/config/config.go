package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	Naver NaverConfig

	// Monte Carlo defaults
	Simulation SimulationConfig

	// Scheduler
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	DB         int
	Enabled    bool
	HistoryTTL time.Duration // 가격 이력 캐시 TTL
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

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL    string
	ChartURL   string
	RatePerSec float64 // 초당 요청 수 (0 = 제한 없음)
}

// SimulationConfig holds the default Monte Carlo run settings.
// CLI flags and API requests override these per run.
type SimulationConfig struct {
	HorizonDays     int    // 거래일 기준 (252 * 15 = 15년)
	Trials          int    // 총 시뮬레이션 횟수
	BatchSize       int    // 배치 크기 (메모리 상한)
	Seed            int64  // 0 = 시계 기반
	Workers         int    // 0 = GOMAXPROCS
	Mode            string // value | return
	LookbackDays    int    // 추정 기간 (0 = 전체 이력)
	PriceField      string // close | adj_close
	PartialOnCancel bool   // 취소 시 부분 통계 반환

	// 최종 수익률 분포 기준 리스크 한도 (0 = 검사 안 함)
	MaxVaR95           float64
	MaxCVaR95          float64
	MaxProbabilityLoss float64
}

// ScheduleConfig holds cron schedules (6-field, seconds first)
type ScheduleConfig struct {
	PriceRefresh string
	RiskCheck    string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
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
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       getEnv("REDIS_PORT", "6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			Enabled:    getEnvAsBool("REDIS_ENABLED", false),
			HistoryTTL: getEnvAsDuration("REDIS_HISTORY_TTL", "12h"),
		},

		Naver: NaverConfig{
			BaseURL:    getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			ChartURL:   getEnv("NAVER_CHART_URL", "https://fchart.stock.naver.com/siseJson.naver"),
			RatePerSec: getEnvAsFloat("NAVER_RATE_PER_SEC", 5),
		},

		Simulation: SimulationConfig{
			HorizonDays:     getEnvAsInt("MC_HORIZON_DAYS", 252*15),
			Trials:          getEnvAsInt("MC_TRIALS", 100000),
			BatchSize:       getEnvAsInt("MC_BATCH_SIZE", 25000),
			Seed:            getEnvAsInt64("MC_SEED", 0),
			Workers:         getEnvAsInt("MC_WORKERS", 0),
			Mode:            getEnv("MC_MODE", "value"),
			LookbackDays:    getEnvAsInt("MC_LOOKBACK_DAYS", 252),
			PriceField:      getEnv("MC_PRICE_FIELD", "close"),
			PartialOnCancel: getEnvAsBool("MC_PARTIAL_ON_CANCEL", false),

			MaxVaR95:           getEnvAsFloat("MC_MAX_VAR95", 0.30),
			MaxCVaR95:          getEnvAsFloat("MC_MAX_CVAR95", 0.40),
			MaxProbabilityLoss: getEnvAsFloat("MC_MAX_PROB_LOSS", 0.25),
		},

		Schedule: ScheduleConfig{
			PriceRefresh: getEnv("SCHEDULE_PRICE_REFRESH", "0 30 18 * * 1-5"),
			RiskCheck:    getEnv("SCHEDULE_RISK_CHECK", "0 0 19 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// RequireDatabase checks that a database URL is configured.
// Only commands that open the database call it.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Simulation.Mode != "value" && c.Simulation.Mode != "return" {
		return fmt.Errorf("MC_MODE must be one of: value, return")
	}

	if c.Simulation.PriceField != "close" && c.Simulation.PriceField != "adj_close" {
		return fmt.Errorf("MC_PRICE_FIELD must be one of: close, adj_close")
	}

	if c.Simulation.LookbackDays < 0 {
		return fmt.Errorf("MC_LOOKBACK_DAYS must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
