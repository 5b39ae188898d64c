// Package config handles environment-based configuration loading and the
// YAML-parsed static base DTab seed file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings for the
// binding core (not hot-updatable).
type EnvConfig struct {
	NameCacheCapacity int
	DtabCacheCapacity int

	CacheCloseDeadline time.Duration
	CacheIdleTimeout   time.Duration

	StatsReportSchedule string

	BaseDtabFile string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error if any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.NameCacheCapacity = envInt("WILY_NAME_CACHE_CAPACITY", 8, &errs)
	cfg.DtabCacheCapacity = envInt("WILY_DTAB_CACHE_CAPACITY", 4, &errs)
	cfg.CacheCloseDeadline = envDuration("WILY_CACHE_CLOSE_DEADLINE", 10*time.Second, &errs)
	cfg.CacheIdleTimeout = envDuration("WILY_CACHE_IDLE_TIMEOUT", 10*time.Minute, &errs)
	cfg.StatsReportSchedule = envStr("WILY_STATS_REPORT_SCHEDULE", "*/1 * * * *")
	cfg.BaseDtabFile = strings.TrimSpace(envStr("WILY_BASE_DTAB_FILE", ""))

	validatePositive("WILY_NAME_CACHE_CAPACITY", cfg.NameCacheCapacity, &errs)
	validatePositive("WILY_DTAB_CACHE_CAPACITY", cfg.DtabCacheCapacity, &errs)
	if cfg.CacheCloseDeadline <= 0 {
		errs = append(errs, "WILY_CACHE_CLOSE_DEADLINE must be positive")
	}
	if cfg.CacheIdleTimeout <= 0 {
		errs = append(errs, "WILY_CACHE_IDLE_TIMEOUT must be positive")
	}
	if _, err := cron.ParseStandard(cfg.StatsReportSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("WILY_STATS_REPORT_SCHEDULE: invalid cron expression %q: %v", cfg.StatsReportSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
