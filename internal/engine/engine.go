// Package engine runs the per-day analytics pipeline and orchestrates it
// across a directory of day logs.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jsagir/rambam-analytics/internal/anomaly"
	"github.com/jsagir/rambam-analytics/internal/event"
	"github.com/jsagir/rambam-analytics/internal/interaction"
	"github.com/jsagir/rambam-analytics/internal/metrics"
	"github.com/jsagir/rambam-analytics/internal/rollup"
	"github.com/jsagir/rambam-analytics/internal/session"
)

// ParsedLog is the per-day output shape served to collaborators.
type ParsedLog struct {
	Date              string                     `json:"date"`
	TotalInteractions int                        `json:"total_interactions"`
	Interactions      []*interaction.Interaction `json:"interactions"`
	Sessions          []*session.Session         `json:"sessions"`
}

// DayResult bundles everything derived from one day's events.
type DayResult struct {
	ParsedLog ParsedLog        `json:"parsed_log"`
	Report    *anomaly.Report  `json:"anomaly_report"`
	Stat      rollup.DailyStat `json:"daily_stat"`
}

// Result is a full multi-day run: per-day results sorted by date, the
// combined KPI, and the dates that failed to process.
type Result struct {
	Days    []*DayResult `json:"days"`
	KPI     rollup.KPI   `json:"kpi"`
	Skipped []string     `json:"skipped_days"`
}

// Options configures an Engine. Zero values fall back to the component
// defaults.
type Options struct {
	Durations  interaction.AudioDurations
	Thresholds anomaly.Thresholds
	SessionGap time.Duration
	Workers    int
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

// Engine wires the normalizer, classifier, segmenter, and rollup into one
// pipeline. Day logs are independent, so multi-day runs fan out over a
// bounded worker pool.
type Engine struct {
	normalizer *interaction.Normalizer
	classifier *anomaly.Classifier
	segmenter  *session.Segmenter
	workers    int
	logger     *slog.Logger
	metrics    *metrics.Collector
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Thresholds == (anomaly.Thresholds{}) {
		opts.Thresholds = anomaly.DefaultThresholds()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		normalizer: interaction.NewNormalizer(opts.Durations, logger),
		classifier: anomaly.NewClassifier(opts.Thresholds),
		segmenter:  session.NewSegmenter(opts.SessionGap, logger),
		workers:    workers,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// ProcessDay runs the single-day pipeline: normalize events into
// interactions, classify anomalies, segment sessions, roll up the daily
// stat. It never fails; malformed sequences flow through as partial records.
func (e *Engine) ProcessDay(day *event.DayLog) *DayResult {
	start := time.Now()

	interactions := e.normalizer.NormalizeDay(day)
	report := anomaly.BuildReport(interactions, e.classifier)
	sessions := e.segmenter.Segment(interactions)
	stat := rollup.BuildDailyStat(day.Date, interactions, sessions)

	e.metrics.RecordDay(len(interactions),
		len(report.Critical), len(report.Warning), len(report.Operational),
		time.Since(start))
	e.logger.Info("day processed",
		"date", day.Date,
		"interactions", len(interactions),
		"sessions", len(sessions),
		"anomalies", stat.AnomalyCount,
		"health", stat.Health)

	return &DayResult{
		ParsedLog: ParsedLog{
			Date:              day.Date,
			TotalInteractions: len(interactions),
			Interactions:      interactions,
			Sessions:          sessions,
		},
		Report: report,
		Stat:   stat,
	}
}

// ProcessDays runs the pipeline over pre-loaded day logs. Logs sharing a
// calendar date (suffixed files like 20260222-2.jsonl) are merged into one
// day before processing.
func (e *Engine) ProcessDays(ctx context.Context, days []*event.DayLog) (*Result, error) {
	results, err := e.runPool(ctx, mergeByDate(days))
	if err != nil {
		return nil, err
	}
	return e.assemble(results, nil), nil
}

// ProcessDir loads and processes every day log under dir. A file that fails
// to load skips that day and reports it; it never aborts the run.
func (e *Engine) ProcessDir(ctx context.Context, dir string) (*Result, error) {
	paths, err := event.ListDayFiles(dir)
	if err != nil {
		return nil, err
	}

	var days []*event.DayLog
	var skipped []string
	for _, p := range paths {
		day, err := event.LoadDayFile(p)
		if err != nil {
			e.logger.Error("day log skipped", "file", filepath.Base(p), "error", err)
			e.metrics.RecordSkippedDay()
			skipped = append(skipped, skippedName(p))
			continue
		}
		days = append(days, day)
	}

	results, err := e.runPool(ctx, mergeByDate(days))
	if err != nil {
		return nil, err
	}
	return e.assemble(results, skipped), nil
}

// runPool processes merged day logs on the bounded worker pool. Each day is
// independent; results land at their input index so ordering is stable.
func (e *Engine) runPool(ctx context.Context, merged []*event.DayLog) ([]*DayResult, error) {
	results := make([]*DayResult, len(merged))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.ProcessDay(merged[i])
			}
		}()
	}

	var cancelled bool
	for i := range merged {
		select {
		case <-ctx.Done():
			cancelled = true
		case jobs <- i:
		}
		if cancelled {
			break
		}
	}
	close(jobs)
	wg.Wait()
	if cancelled {
		return nil, ctx.Err()
	}
	return results, nil
}

func (e *Engine) assemble(results []*DayResult, skipped []string) *Result {
	sort.Slice(results, func(i, j int) bool {
		return results[i].ParsedLog.Date < results[j].ParsedLog.Date
	})

	stats := make([]rollup.DailyStat, len(results))
	for i, r := range results {
		stats[i] = r.Stat
	}
	return &Result{
		Days:    results,
		KPI:     rollup.BuildKPI(stats, skipped),
		Skipped: skipped,
	}
}

// mergeByDate concatenates the events of day logs that share a date and
// returns one log per date, sorted. The normalizer re-sorts by timestamp,
// so concatenation order does not matter.
func mergeByDate(days []*event.DayLog) []*event.DayLog {
	byDate := make(map[string]*event.DayLog)
	var order []string
	for _, d := range days {
		if existing, ok := byDate[d.Date]; ok {
			existing.Events = append(existing.Events, d.Events...)
			continue
		}
		merged := &event.DayLog{Date: d.Date, File: d.File}
		merged.Events = append(merged.Events, d.Events...)
		byDate[d.Date] = merged
		order = append(order, d.Date)
	}
	sort.Strings(order)

	out := make([]*event.DayLog, 0, len(order))
	for _, date := range order {
		out = append(out, byDate[date])
	}
	return out
}

func skippedName(path string) string {
	if date := event.DateFromFilename(path); date != "" {
		return date
	}
	return filepath.Base(path)
}
