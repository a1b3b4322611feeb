package anomaly

import (
	"github.com/jsagir/rambam-analytics/internal/interaction"
)

// Report is one day's classification output: findings bucketed by severity,
// summary counts, and the distributions behind them.
type Report struct {
	Critical    []Finding `json:"critical"`
	Warning     []Finding `json:"warning"`
	Operational []Finding `json:"operational"`
	Summary     Summary   `json:"summary"`
	Metrics     Metrics   `json:"metrics"`
}

type Summary struct {
	TotalInteractions int `json:"total_interactions"`
	CriticalCount     int `json:"critical_count"`
	WarningCount      int `json:"warning_count"`
	OperationalCount  int `json:"operational_count"`
}

// Metrics aggregates the raw distributions the findings were judged
// against, keyed per latency stage.
type Metrics struct {
	Latencies     map[string]*LatencySummary `json:"latencies"`
	Languages     map[string]int             `json:"languages"`
	QuestionTypes map[string]int             `json:"question_types"`
}

type LatencySummary struct {
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Avg    float64 `json:"avg"`
	Count  int     `json:"count"`
	Values []int64 `json:"values"`
}

// Latency stage keys in the metrics block.
const (
	StageFirstResponse = "first_response"
	StageOpening       = "opening"
	StageAIThink       = "ai_think"
	StageStream        = "stream"
)

// BuildReport classifies every interaction, attaches the resulting tags to
// each record, and assembles the day's report. A malformed interaction is
// simply flagged with whatever its partial data supports — the batch never
// fails.
func BuildReport(interactions []*interaction.Interaction, c *Classifier) *Report {
	r := &Report{
		Critical:    []Finding{},
		Warning:     []Finding{},
		Operational: []Finding{},
		Summary:     Summary{TotalInteractions: len(interactions)},
		Metrics: Metrics{
			Latencies:     make(map[string]*LatencySummary, 4),
			Languages:     make(map[string]int),
			QuestionTypes: make(map[string]int),
		},
	}

	stageValues := map[string][]int64{}
	for _, it := range interactions {
		findings := c.Classify(it)
		it.SetAnomalies(Tags(findings))

		for _, f := range findings {
			switch f.Severity {
			case SeverityCritical:
				r.Critical = append(r.Critical, f)
			case SeverityWarning:
				r.Warning = append(r.Warning, f)
			case SeverityOperational:
				r.Operational = append(r.Operational, f)
			}
		}

		collect(stageValues, StageFirstResponse, it.LatencyMs)
		collect(stageValues, StageOpening, it.OpeningLatencyMs)
		collect(stageValues, StageAIThink, it.AIThinkMs)
		collect(stageValues, StageStream, it.StreamDurationMs)

		lang := it.Language
		if lang == "" {
			lang = "unknown"
		}
		r.Metrics.Languages[lang]++
		if it.QuestionType != "" {
			r.Metrics.QuestionTypes[it.QuestionType]++
		}
	}

	r.Summary.CriticalCount = len(r.Critical)
	r.Summary.WarningCount = len(r.Warning)
	r.Summary.OperationalCount = len(r.Operational)

	for stage, values := range stageValues {
		r.Metrics.Latencies[stage] = summarize(values)
	}
	return r
}

func collect(m map[string][]int64, stage string, v *int64) {
	if v != nil {
		m[stage] = append(m[stage], *v)
	}
}

func summarize(values []int64) *LatencySummary {
	s := &LatencySummary{Count: len(values), Values: values}
	if len(values) == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	var sum int64
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Avg = float64(sum) / float64(len(values))
	return s
}
