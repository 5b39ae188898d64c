package config

import (
	"testing"
	"time"
)

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "NameCacheCapacity", cfg.NameCacheCapacity, 8)
	assertEqual(t, "DtabCacheCapacity", cfg.DtabCacheCapacity, 4)
	assertEqual(t, "CacheCloseDeadline", cfg.CacheCloseDeadline, 10*time.Second)
	assertEqual(t, "CacheIdleTimeout", cfg.CacheIdleTimeout, 10*time.Minute)
	assertEqual(t, "StatsReportSchedule", cfg.StatsReportSchedule, "*/1 * * * *")
	assertEqual(t, "BaseDtabFile", cfg.BaseDtabFile, "")
}

func TestLoadEnvConfig_Overrides(t *testing.T) {
	t.Setenv("WILY_NAME_CACHE_CAPACITY", "16")
	t.Setenv("WILY_DTAB_CACHE_CAPACITY", "2")
	t.Setenv("WILY_CACHE_CLOSE_DEADLINE", "30s")
	t.Setenv("WILY_STATS_REPORT_SCHEDULE", "*/5 * * * *")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "NameCacheCapacity", cfg.NameCacheCapacity, 16)
	assertEqual(t, "DtabCacheCapacity", cfg.DtabCacheCapacity, 2)
	assertEqual(t, "CacheCloseDeadline", cfg.CacheCloseDeadline, 30*time.Second)
	assertEqual(t, "StatsReportSchedule", cfg.StatsReportSchedule, "*/5 * * * *")
}

func TestLoadEnvConfig_InvalidCronRejected(t *testing.T) {
	t.Setenv("WILY_STATS_REPORT_SCHEDULE", "not a cron expression")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for an invalid cron schedule")
	}
}

func TestLoadEnvConfig_NonPositiveCapacityRejected(t *testing.T) {
	t.Setenv("WILY_NAME_CACHE_CAPACITY", "0")

	if _, err := LoadEnvConfig(); err == nil {
		t.Fatal("expected an error for a non-positive cache capacity")
	}
}
