// Package rollup folds one day's interactions and sessions into a DailyStat
// and combines DailyStats across days into a volume-weighted KPI.
package rollup

import (
	"time"

	"github.com/jsagir/rambam-analytics/internal/anomaly"
	"github.com/jsagir/rambam-analytics/internal/interaction"
	"github.com/jsagir/rambam-analytics/internal/session"
	"github.com/jsagir/rambam-analytics/internal/stats"
)

// Health labels used on both daily and KPI rollups.
const (
	HealthHealthy  = "healthy"
	HealthIssues   = "issues"
	HealthCritical = "critical"
)

// Anomaly-rate cutoffs for the health label, as fractions of total volume.
// Fixed constants, not per-day configuration.
const (
	healthIssuesRate   = 0.10
	healthCriticalRate = 0.25
)

// DailyStat is one calendar day's rollup. The sample-count fields
// (OpeningSamples, ThinkSamples, SeamlessCount) carry the weights the
// multi-day KPI needs so it can be rebuilt from DailyStats alone.
type DailyStat struct {
	Date              string `json:"date"`
	DayOfWeek         string `json:"day_of_week"`
	TotalInteractions int    `json:"total_interactions"`
	Questions         int    `json:"questions"`

	Latency             stats.Summary `json:"latency"`
	AvgOpeningLatencyMs int64         `json:"avg_opening_latency_ms"`
	AvgAIThinkMs        int64         `json:"avg_ai_think_ms"`
	OpeningSamples      int           `json:"opening_samples"`
	ThinkSamples        int           `json:"think_samples"`
	SeamlessCount       int           `json:"seamless_count"`

	LanguageDistribution     map[string]int `json:"language_distribution"`
	TopicDistribution        map[string]int `json:"topic_distribution"`
	QuestionTypeDistribution map[string]int `json:"question_type_distribution"`
	HourlyDistribution       [24]int        `json:"hourly_distribution"`

	AnomalyCount    int `json:"anomaly_count"`
	CriticalCount   int `json:"critical_count"`
	FailureCount    int `json:"failure_count"`
	NoAnswerCount   int `json:"no_answer_count"`
	OutOfOrderCount int `json:"out_of_order_count"`
	SessionCount    int `json:"session_count"`

	FirstInteraction string `json:"first_interaction"`
	LastInteraction  string `json:"last_interaction"`
	Health           string `json:"health"`
}

// BuildDailyStat rolls one day up. Interactions are expected to carry their
// anomaly tags already (BuildReport sets them); the classifier is not re-run
// here. An empty day yields a zero stat labeled healthy.
func BuildDailyStat(date string, interactions []*interaction.Interaction, sessions []*session.Session) DailyStat {
	d := DailyStat{
		Date:                     date,
		DayOfWeek:                dayOfWeek(date),
		TotalInteractions:        len(interactions),
		SessionCount:             len(sessions),
		LanguageDistribution:     map[string]int{},
		TopicDistribution:        map[string]int{},
		QuestionTypeDistribution: map[string]int{},
		Health:                   HealthHealthy,
	}
	if len(interactions) == 0 {
		return d
	}

	var latencies []int64
	var openingSum, thinkSum int64
	var firstAt, lastAt time.Time
	for _, it := range interactions {
		d.LanguageDistribution[it.Language]++
		d.TopicDistribution[it.Topic]++
		d.QuestionTypeDistribution[it.QuestionType]++
		if it.Hour >= 0 && it.Hour < 24 {
			d.HourlyDistribution[it.Hour]++
		}

		if !it.IsGreeting {
			d.Questions++
		}
		if it.IsComprehensionFailure {
			d.FailureCount++
		}
		if it.IsNoAnswer {
			d.NoAnswerCount++
		}
		if it.IsOutOfOrder {
			d.OutOfOrderCount++
		}
		if it.IsAnomaly {
			d.AnomalyCount++
		}
		if sev, ok := anomaly.HighestSeverity(it.Anomalies); ok && sev == anomaly.SeverityCritical {
			d.CriticalCount++
		}

		if it.LatencyMs != nil && *it.LatencyMs > 0 {
			latencies = append(latencies, *it.LatencyMs)
		}
		if it.OpeningLatencyMs != nil && *it.OpeningLatencyMs > 0 {
			openingSum += *it.OpeningLatencyMs
			d.OpeningSamples++
		}
		if it.AIThinkMs != nil && *it.AIThinkMs > 0 {
			thinkSum += *it.AIThinkMs
			d.ThinkSamples++
		}
		if it.Seamless() {
			d.SeamlessCount++
		}

		if it.HasTime {
			if firstAt.IsZero() || it.At.Before(firstAt) {
				firstAt = it.At
			}
			if it.At.After(lastAt) {
				lastAt = it.At
			}
		}
	}

	d.Latency = stats.Summarize(latencies)
	if d.OpeningSamples > 0 {
		d.AvgOpeningLatencyMs = openingSum / int64(d.OpeningSamples)
	}
	if d.ThinkSamples > 0 {
		d.AvgAIThinkMs = thinkSum / int64(d.ThinkSamples)
	}
	if !firstAt.IsZero() {
		d.FirstInteraction = firstAt.Format("15:04")
		d.LastInteraction = lastAt.Format("15:04")
	}
	d.Health = healthFor(d.AnomalyCount, d.TotalInteractions)
	return d
}

func healthFor(anomalies, total int) string {
	if total == 0 {
		return HealthHealthy
	}
	rate := float64(anomalies) / float64(total)
	switch {
	case rate < healthIssuesRate:
		return HealthHealthy
	case rate < healthCriticalRate:
		return HealthIssues
	default:
		return HealthCritical
	}
}

func dayOfWeek(date string) string {
	dt, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return dt.Format("Mon")
}
