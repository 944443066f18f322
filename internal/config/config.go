package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Collector    CollectorConfig
	Orchestrator OrchestratorConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type AuthConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration

	OperatorName         string
	OperatorPasswordHash string
}

type CollectorConfig struct {
	BaseURL       string
	InternalToken string
}

type OrchestratorConfig struct {
	HealBudget       time.Duration
	HealConcurrency  int
	LockLease        time.Duration
	MinSelectedItems int
	ScheduleEvery    time.Duration

	// ThresholdOverrides maps source id to a staleness threshold,
	// parsed from "transit-alerts=6,city-news=12" (hours).
	ThresholdOverrides map[string]time.Duration
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE"),

		ConnectTimeout:        durationSeconds(opt("DB_CONNECT_TIMEOUT_SECONDS"), 0),
		PoolMaxConns:          int32(intOrDefault(opt("DB_POOL_MAX_CONNS"), 0)),
		PoolMinConns:          int32(intOrDefault(opt("DB_POOL_MIN_CONNS"), 0)),
		PoolMaxConnLifetime:   durationSeconds(opt("DB_POOL_MAX_CONN_LIFETIME_SECONDS"), 0),
		PoolMaxConnIdleTime:   durationSeconds(opt("DB_POOL_MAX_CONN_IDLE_SECONDS"), 0),
		PoolHealthCheckPeriod: durationSeconds(opt("DB_POOL_HEALTH_CHECK_SECONDS"), 0),
	}

	cfg.Auth = AuthConfig{
		JWTAccessSecret:  opt("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: opt("JWT_REFRESH_SECRET"),
		AccessExpiresIn:  durationSeconds(opt("JWT_ACCESS_EXPIRES_SECONDS"), 15*time.Minute),
		RefreshExpiresIn: durationSeconds(opt("JWT_REFRESH_EXPIRES_SECONDS"), 7*24*time.Hour),

		OperatorName:         opt("OPERATOR_NAME"),
		OperatorPasswordHash: opt("OPERATOR_PASSWORD_HASH"),
	}

	cfg.Collector = CollectorConfig{
		BaseURL:       opt("COLLECTOR_BASE_URL"),
		InternalToken: opt("COLLECTOR_INTERNAL_TOKEN"),
	}

	cfg.Orchestrator = OrchestratorConfig{
		HealBudget:         durationMillis(opt("ORCH_HEAL_BUDGET_MS"), 25*time.Second),
		HealConcurrency:    intOrDefault(opt("ORCH_HEAL_CONCURRENCY"), 3),
		LockLease:          durationSeconds(opt("ORCH_LOCK_LEASE_SECONDS"), 120*time.Second),
		MinSelectedItems:   intOrDefault(opt("QUALITY_MIN_SELECTED"), 1),
		ScheduleEvery:      durationSeconds(opt("ORCH_SCHEDULE_SECONDS"), 0),
		ThresholdOverrides: parseThresholdOverrides(opt("SOURCE_THRESHOLD_OVERRIDES")),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func intOrDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func durationSeconds(raw string, def time.Duration) time.Duration {
	v := intOrDefault(raw, 0)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func durationMillis(raw string, def time.Duration) time.Duration {
	v := intOrDefault(raw, 0)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func parseThresholdOverrides(raw string) map[string]time.Duration {
	if raw == "" {
		return nil
	}
	out := make(map[string]time.Duration)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		id := strings.TrimSpace(kv[0])
		hours, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil || id == "" || hours <= 0 {
			continue
		}
		out[id] = time.Duration(hours * float64(time.Hour))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
