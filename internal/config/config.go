package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	LogLevel          string
	DataDir           string
	AudioDurationPath string
	SessionGapMinutes int
	LatencyWarnMs     int64
	LatencyCriticalMs int64
	OpeningWarnMs     int64
	OpeningCriticalMs int64
	DayWorkers        int
}

func Load() Config {
	// Optional .env for local runs; real env vars always win.
	_ = godotenv.Load()

	return Config{
		Port:              envInt("RAMBAM_PORT", 8760),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		DataDir:           envStr("RAMBAM_DATA_DIR", "./logs/parsed"),
		AudioDurationPath: envStr("RAMBAM_AUDIO_DURATIONS", ""),
		SessionGapMinutes: envInt("RAMBAM_SESSION_GAP_MIN", 30),
		LatencyWarnMs:     envInt64("RAMBAM_LATENCY_WARN_MS", 3000),
		LatencyCriticalMs: envInt64("RAMBAM_LATENCY_CRITICAL_MS", 6000),
		OpeningWarnMs:     envInt64("RAMBAM_OPENING_WARN_MS", 2000),
		OpeningCriticalMs: envInt64("RAMBAM_OPENING_CRITICAL_MS", 3000),
		DayWorkers:        envInt("RAMBAM_DAY_WORKERS", 4),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
