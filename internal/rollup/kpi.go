package rollup

import (
	"math"
	"sort"
)

// Trend labels. A trend is only reported with at least two days of data;
// below that the KPI says so explicitly rather than defaulting to stable.
const (
	TrendUp           = "up"
	TrendDown         = "down"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient data"
)

// Volume change between the two halves of the date range must exceed this
// fraction before the trend moves off stable.
const trendBand = 0.10

// KPI is the multi-day summary. All latency and rate figures are weighted by
// each day's sample count, so a 2-interaction day cannot move the average the
// way a 200-interaction day does. Rates are percentages rounded to one
// decimal.
type KPI struct {
	TotalInteractions     int     `json:"total_interactions"`
	TotalDays             int     `json:"total_days"`
	AvgInteractionsPerDay float64 `json:"avg_interactions_per_day"`

	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	MaxLatencyMs        int64   `json:"max_latency_ms"`
	AvgOpeningLatencyMs float64 `json:"avg_opening_latency_ms"`
	AvgAIThinkMs        float64 `json:"avg_ai_think_ms"`

	SeamlessResponseRate float64 `json:"seamless_response_rate"`
	OutOfOrderCount      int     `json:"out_of_order_count"`
	AnomalyCount         int     `json:"anomaly_count"`
	AnomalyRate          float64 `json:"anomaly_rate"`
	FailureCount         int     `json:"failure_count"`
	FailureRate          float64 `json:"failure_rate"`

	LanguageDistribution map[string]int `json:"language_distribution"`
	TopicDistribution    map[string]int `json:"topic_distribution"`

	Health      string   `json:"health"`
	Trend       string   `json:"trend"`
	SkippedDays []string `json:"skipped_days"`
}

// BuildKPI combines per-day rollups. skipped lists the dates whose raw logs
// failed to load or normalize; they contribute nothing to the figures but are
// surfaced so a silent hole in the data is visible.
func BuildKPI(days []DailyStat, skipped []string) KPI {
	k := KPI{
		LanguageDistribution: map[string]int{},
		TopicDistribution:    map[string]int{},
		Health:               HealthHealthy,
		Trend:                TrendInsufficient,
		SkippedDays:          append([]string(nil), skipped...),
	}
	sort.Strings(k.SkippedDays)
	if len(days) == 0 {
		return k
	}

	sorted := make([]DailyStat, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var latWeighted, openWeighted, thinkWeighted float64
	var latSamples, openSamples, thinkSamples, seamless int
	for _, d := range sorted {
		k.TotalInteractions += d.TotalInteractions
		k.OutOfOrderCount += d.OutOfOrderCount
		k.AnomalyCount += d.AnomalyCount
		k.FailureCount += d.FailureCount

		latWeighted += d.Latency.AvgMs * float64(d.Latency.Count)
		latSamples += d.Latency.Count
		if d.Latency.MaxMs > k.MaxLatencyMs {
			k.MaxLatencyMs = d.Latency.MaxMs
		}
		openWeighted += float64(d.AvgOpeningLatencyMs) * float64(d.OpeningSamples)
		openSamples += d.OpeningSamples
		thinkWeighted += float64(d.AvgAIThinkMs) * float64(d.ThinkSamples)
		thinkSamples += d.ThinkSamples
		seamless += d.SeamlessCount

		for lang, n := range d.LanguageDistribution {
			k.LanguageDistribution[lang] += n
		}
		for topic, n := range d.TopicDistribution {
			k.TopicDistribution[topic] += n
		}
	}

	k.TotalDays = len(sorted)
	k.AvgInteractionsPerDay = round1(float64(k.TotalInteractions) / float64(k.TotalDays))
	if latSamples > 0 {
		k.AvgLatencyMs = round1(latWeighted / float64(latSamples))
	}
	if openSamples > 0 {
		k.AvgOpeningLatencyMs = round1(openWeighted / float64(openSamples))
	}
	if thinkSamples > 0 {
		k.AvgAIThinkMs = round1(thinkWeighted / float64(thinkSamples))
		k.SeamlessResponseRate = round1(float64(seamless) / float64(thinkSamples) * 100)
	}
	if k.TotalInteractions > 0 {
		k.AnomalyRate = round1(float64(k.AnomalyCount) / float64(k.TotalInteractions) * 100)
		k.FailureRate = round1(float64(k.FailureCount) / float64(k.TotalInteractions) * 100)
	}
	k.Health = healthFor(k.AnomalyCount, k.TotalInteractions)
	k.Trend = trendFor(sorted)
	return k
}

// trendFor compares mean daily volume in the first half of the date range
// against the second half. The middle day of an odd-length range belongs to
// neither half.
func trendFor(sorted []DailyStat) string {
	n := len(sorted)
	if n < 2 {
		return TrendInsufficient
	}
	half := n / 2
	first := meanVolume(sorted[:half])
	second := meanVolume(sorted[n-half:])
	if first == 0 {
		if second > 0 {
			return TrendUp
		}
		return TrendStable
	}
	change := (second - first) / first
	switch {
	case change > trendBand:
		return TrendUp
	case change < -trendBand:
		return TrendDown
	default:
		return TrendStable
	}
}

func meanVolume(days []DailyStat) float64 {
	var sum int
	for _, d := range days {
		sum += d.TotalInteractions
	}
	return float64(sum) / float64(len(days))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
