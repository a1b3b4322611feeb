package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsagir/rambam-analytics/internal/anomaly"
	"github.com/jsagir/rambam-analytics/internal/api"
	"github.com/jsagir/rambam-analytics/internal/config"
	"github.com/jsagir/rambam-analytics/internal/engine"
	"github.com/jsagir/rambam-analytics/internal/interaction"
	"github.com/jsagir/rambam-analytics/internal/metrics"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("rambam-analytics starting", "port", cfg.Port, "data_dir", cfg.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Filler clip durations — defaults unless a table is configured
	durations := interaction.DefaultAudioDurations()
	if cfg.AudioDurationPath != "" {
		var err error
		durations, err = interaction.LoadAudioDurations(cfg.AudioDurationPath)
		if err != nil {
			slog.Error("failed to load audio durations", "path", cfg.AudioDurationPath, "error", err)
			os.Exit(1)
		}
		slog.Info("audio durations loaded", "path", cfg.AudioDurationPath, "clips", len(durations))
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		slog.Error("failed to build metrics collector", "error", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Options{
		Durations: durations,
		Thresholds: anomaly.Thresholds{
			LatencyWarnMs:     cfg.LatencyWarnMs,
			LatencyCriticalMs: cfg.LatencyCriticalMs,
			OpeningWarnMs:     cfg.OpeningWarnMs,
			OpeningCriticalMs: cfg.OpeningCriticalMs,
		},
		SessionGap: time.Duration(cfg.SessionGapMinutes) * time.Minute,
		Workers:    cfg.DayWorkers,
		Logger:     slog.Default(),
		Metrics:    collector,
	})

	result, err := eng.ProcessDir(ctx, cfg.DataDir)
	if err != nil {
		slog.Error("failed to process day logs", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	slog.Info("day logs processed",
		"days", len(result.Days),
		"interactions", result.KPI.TotalInteractions,
		"anomaly_rate", result.KPI.AnomalyRate,
		"skipped", len(result.Skipped))

	srv := api.NewServer(cfg.Port, collector)
	srv.SetResult(result)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("rambam-analytics ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("rambam-analytics stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
