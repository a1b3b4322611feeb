// Package anomaly applies a fixed, auditable rule taxonomy to interactions.
// All policy lives in one declarative table consumed by one classification
// function, decoupled from any presentation concern.
package anomaly

import (
	"fmt"
	"strings"

	"github.com/jsagir/rambam-analytics/internal/interaction"
)

type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityWarning     Severity = "warning"
	SeverityOperational Severity = "operational"
)

// Anomaly tags, in taxonomy order.
const (
	TagLatencySpikeWarn       = "LATENCY_SPIKE_WARN"
	TagLatencySpikeCritical   = "LATENCY_SPIKE_CRITICAL"
	TagLangUnknown            = "LANG_UNKNOWN"
	TagLLMError               = "LLM_ERROR"
	TagEmptyResponse          = "EMPTY_RESPONSE"
	TagFallbackTriggered      = "FALLBACK_TRIGGERED"
	TagOutOfOrder             = "OUT_OF_ORDER"
	TagThinkOverflow          = "THINK_OVERFLOW"
	TagOpeningLatencyWarn     = "OPENING_LATENCY_WARN"
	TagOpeningLatencyCritical = "OPENING_LATENCY_CRITICAL"
)

// Thresholds are the tunable limits behind the latency rules.
type Thresholds struct {
	LatencyWarnMs     int64
	LatencyCriticalMs int64
	OpeningWarnMs     int64
	OpeningCriticalMs int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LatencyWarnMs:     3000,
		LatencyCriticalMs: 6000,
		OpeningWarnMs:     2000,
		OpeningCriticalMs: 3000,
	}
}

// Finding is one matched anomaly rule on one interaction.
type Finding struct {
	Type          string   `json:"type"`
	Severity      Severity `json:"severity"`
	InteractionID string   `json:"interaction_id"`
	Timestamp     string   `json:"timestamp,omitempty"`
	Question      string   `json:"question,omitempty"`
	ValueMs       *int64   `json:"value_ms,omitempty"`
	Description   string   `json:"description"`
}

// rule is one row of the taxonomy table. match returns whether the rule
// fires, the metric value behind it, and a human explanation.
type rule struct {
	tag      string
	severity Severity
	match    func(it *interaction.Interaction, t Thresholds) (bool, *int64, string)
}

// rules is the complete taxonomy, evaluated in order with no short-circuit:
// every matching tag is emitted.
var rules = []rule{
	{TagLatencySpikeWarn, SeverityWarning, func(it *interaction.Interaction, t Thresholds) (bool, *int64, string) {
		if it.LatencyMs != nil && *it.LatencyMs > t.LatencyWarnMs {
			return true, it.LatencyMs, fmt.Sprintf("first response took %dms, over the %dms warning threshold", *it.LatencyMs, t.LatencyWarnMs)
		}
		return false, nil, ""
	}},
	{TagLatencySpikeCritical, SeverityCritical, func(it *interaction.Interaction, t Thresholds) (bool, *int64, string) {
		if it.LatencyMs != nil && *it.LatencyMs > t.LatencyCriticalMs {
			return true, it.LatencyMs, fmt.Sprintf("first response took %dms, over the %dms critical threshold", *it.LatencyMs, t.LatencyCriticalMs)
		}
		return false, nil, ""
	}},
	{TagLangUnknown, SeverityCritical, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if it.Language == "unknown" && !it.IsGreeting {
			return true, nil, "language detection failed"
		}
		return false, nil, ""
	}},
	{TagLLMError, SeverityCritical, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if len(it.ErrorCodes) > 0 {
			return true, nil, fmt.Sprintf("upstream error codes: %v", it.ErrorCodes)
		}
		return false, nil, ""
	}},
	{TagEmptyResponse, SeverityCritical, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if strings.TrimSpace(it.Answer) == "" {
			return true, nil, "no answer text produced"
		}
		return false, nil, ""
	}},
	{TagFallbackTriggered, SeverityWarning, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if it.IsComprehensionFailure {
			return true, nil, "visitor was asked to rephrase"
		}
		return false, nil, ""
	}},
	{TagOutOfOrder, SeverityOperational, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if it.IsOutOfOrder {
			return true, it.AIThinkMs, "answer became available before the opening sentence started"
		}
		return false, nil, ""
	}},
	{TagThinkOverflow, SeverityWarning, func(it *interaction.Interaction, _ Thresholds) (bool, *int64, string) {
		if it.AIThinkMs != nil && it.OpeningAudioDurationMs != nil && *it.AIThinkMs > *it.OpeningAudioDurationMs {
			return true, it.AIThinkMs, fmt.Sprintf("model thought %dms, longer than the %dms opening clip", *it.AIThinkMs, *it.OpeningAudioDurationMs)
		}
		return false, nil, ""
	}},
	{TagOpeningLatencyWarn, SeverityWarning, func(it *interaction.Interaction, t Thresholds) (bool, *int64, string) {
		if it.OpeningLatencyMs != nil && *it.OpeningLatencyMs > t.OpeningWarnMs {
			return true, it.OpeningLatencyMs, fmt.Sprintf("%dms of silence before the opening sentence, over the %dms warning threshold", *it.OpeningLatencyMs, t.OpeningWarnMs)
		}
		return false, nil, ""
	}},
	{TagOpeningLatencyCritical, SeverityCritical, func(it *interaction.Interaction, t Thresholds) (bool, *int64, string) {
		if it.OpeningLatencyMs != nil && *it.OpeningLatencyMs > t.OpeningCriticalMs {
			return true, it.OpeningLatencyMs, fmt.Sprintf("%dms of silence before the opening sentence, over the %dms critical threshold", *it.OpeningLatencyMs, t.OpeningCriticalMs)
		}
		return false, nil, ""
	}},
}

// severityByTag is derived from the table for bucketing lookups.
var severityByTag = func() map[string]Severity {
	m := make(map[string]Severity, len(rules))
	for _, r := range rules {
		m[r.tag] = r.severity
	}
	return m
}()

// Classifier maps one Interaction to its ordered anomaly findings. Pure:
// it reads only the interaction's own derived fields, so classification is
// independent of raw event order and parallelizable across interactions.
type Classifier struct {
	thresholds Thresholds
}

func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify evaluates the full rule table against one interaction and
// returns every matching finding, in table order.
func (c *Classifier) Classify(it *interaction.Interaction) []Finding {
	var findings []Finding
	for _, r := range rules {
		matched, value, desc := r.match(it, c.thresholds)
		if !matched {
			continue
		}
		findings = append(findings, Finding{
			Type:          r.tag,
			Severity:      r.severity,
			InteractionID: it.ID,
			Timestamp:     it.Time,
			Question:      it.Question,
			ValueMs:       value,
			Description:   desc,
		})
	}
	return findings
}

// Tags returns just the tag names of a classification, for attaching to the
// interaction record.
func Tags(findings []Finding) []string {
	if len(findings) == 0 {
		return nil
	}
	tags := make([]string, len(findings))
	for i, f := range findings {
		tags[i] = f.Type
	}
	return tags
}

// HighestSeverity returns the most severe classification among the given
// tags: critical > warning > operational.
func HighestSeverity(tags []string) (Severity, bool) {
	var out Severity
	var found bool
	for _, tag := range tags {
		sev, ok := severityByTag[tag]
		if !ok {
			continue
		}
		if !found || rank(sev) > rank(out) {
			out, found = sev, true
		}
	}
	return out, found
}

func rank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityOperational:
		return 1
	}
	return 0
}
