// Package stats computes distributional statistics over latency samples:
// mean, median, nearest-rank percentiles, and SLA compliance buckets.
package stats

import "sort"

// SLA bucket boundaries in milliseconds.
const (
	SLAGoodMaxMs   = 2000
	SLAWarnMaxMs   = 3000
	SLASevereMinMs = 6000
)

// Summary is the full distribution over one sample set. A zero Count means
// every derived value is meaningless — callers must check it before trusting
// anything else.
type Summary struct {
	Count    int     `json:"count"`
	AvgMs    float64 `json:"avg_ms"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	MedianMs float64 `json:"median_ms"`
	P75Ms    int64   `json:"p75_ms"`
	P90Ms    int64   `json:"p90_ms"`
	P95Ms    int64   `json:"p95_ms"`
	P99Ms    int64   `json:"p99_ms"`
	SLA      SLA     `json:"sla"`
}

// SLA buckets latency samples into quality ranges. Severe overlaps critical:
// it counts the >6000ms tail separately.
type SLA struct {
	GoodCount     int     `json:"good_count"`     // <= 2000ms
	WarningCount  int     `json:"warning_count"`  // 2001-3000ms
	CriticalCount int     `json:"critical_count"` // > 3000ms
	SevereCount   int     `json:"severe_count"`   // > 6000ms
	GoodPct       float64 `json:"good_pct"`
	WarningPct    float64 `json:"warning_pct"`
	CriticalPct   float64 `json:"critical_pct"`
	SeverePct     float64 `json:"severe_pct"`
}

// Summarize computes the distribution over a sample set. Empty input yields
// a zero-valued Summary with Count 0 — never an error or a division by zero.
func Summarize(samples []int64) Summary {
	s := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}

	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	s.AvgMs = float64(sum) / float64(n)
	s.MinMs = sorted[0]
	s.MaxMs = sorted[n-1]

	// Median averages the two middle values for even-sized sets.
	if n%2 == 1 {
		s.MedianMs = float64(sorted[n/2])
	} else {
		s.MedianMs = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	s.P75Ms = Percentile(sorted, 0.75)
	s.P90Ms = Percentile(sorted, 0.90)
	s.P95Ms = Percentile(sorted, 0.95)
	s.P99Ms = Percentile(sorted, 0.99)

	for _, v := range sorted {
		switch {
		case v <= SLAGoodMaxMs:
			s.SLA.GoodCount++
		case v <= SLAWarnMaxMs:
			s.SLA.WarningCount++
		default:
			s.SLA.CriticalCount++
		}
		if v > SLASevereMinMs {
			s.SLA.SevereCount++
		}
	}
	total := float64(n)
	s.SLA.GoodPct = float64(s.SLA.GoodCount) / total * 100
	s.SLA.WarningPct = float64(s.SLA.WarningCount) / total * 100
	s.SLA.CriticalPct = float64(s.SLA.CriticalCount) / total * 100
	s.SLA.SeverePct = float64(s.SLA.SevereCount) / total * 100

	return s
}

// Percentile selects by nearest rank on an ascending-sorted sample:
// index floor(n*p), 0-indexed. The exact rule matters — report fixtures
// depend on it being reproducible.
func Percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
