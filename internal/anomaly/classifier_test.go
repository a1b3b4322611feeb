package anomaly

import (
	"reflect"
	"testing"

	"github.com/jsagir/rambam-analytics/internal/interaction"
)

func ms(v int64) *int64 { return &v }

func answered(it *interaction.Interaction) *interaction.Interaction {
	if it.Answer == "" {
		it.Answer = "a perfectly ordinary answer"
	}
	if it.Language == "" {
		it.Language = "he-IL"
	}
	return it
}

func TestClassify_LatencySpikeEmitsBothTags(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	it := answered(&interaction.Interaction{ID: "m1", LatencyMs: ms(6500)})

	findings := c.Classify(it)
	tags := Tags(findings)

	want := []string{TagLatencySpikeWarn, TagLatencySpikeCritical}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v (no short-circuit, table order)", tags, want)
	}
	if findings[0].Severity != SeverityWarning || findings[1].Severity != SeverityCritical {
		t.Errorf("severities = %v/%v", findings[0].Severity, findings[1].Severity)
	}
	if findings[1].ValueMs == nil || *findings[1].ValueMs != 6500 {
		t.Error("finding should carry the metric value")
	}
}

func TestClassify_WarnOnlyBetweenThresholds(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	it := answered(&interaction.Interaction{ID: "m2", LatencyMs: ms(4200)})

	tags := Tags(c.Classify(it))
	if !reflect.DeepEqual(tags, []string{TagLatencySpikeWarn}) {
		t.Errorf("tags = %v, want only LATENCY_SPIKE_WARN", tags)
	}
}

func TestClassify_NilLatencyNeverSpikes(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	it := answered(&interaction.Interaction{ID: "m3"})

	if tags := Tags(c.Classify(it)); len(tags) != 0 {
		t.Errorf("nil latency produced tags %v", tags)
	}
}

func TestClassify_LangUnknown(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	it := answered(&interaction.Interaction{ID: "m4"})
	it.Language = "unknown"
	if tags := Tags(c.Classify(it)); !reflect.DeepEqual(tags, []string{TagLangUnknown}) {
		t.Errorf("tags = %v, want LANG_UNKNOWN", tags)
	}

	// A greeting with no detectable language is not an anomaly.
	it = answered(&interaction.Interaction{ID: "m5", IsGreeting: true})
	it.Language = "unknown"
	if tags := Tags(c.Classify(it)); len(tags) != 0 {
		t.Errorf("greeting produced tags %v", tags)
	}
}

func TestClassify_ErrorAndEmptyAndFallback(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	it := &interaction.Interaction{
		ID:                     "m6",
		Language:               "en-US",
		ErrorCodes:             []int{502},
		IsComprehensionFailure: true,
		// Answer deliberately empty.
	}

	tags := Tags(c.Classify(it))
	want := []string{TagLLMError, TagEmptyResponse, TagFallbackTriggered}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestClassify_ThinkOverflowAndOutOfOrder(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	it := answered(&interaction.Interaction{
		ID:                     "m7",
		IsOutOfOrder:           true,
		AIThinkMs:              ms(4000),
		OpeningAudioDurationMs: ms(3000),
	})

	tags := Tags(c.Classify(it))
	want := []string{TagOutOfOrder, TagThinkOverflow}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestClassify_OpeningLatencyThresholds(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	it := answered(&interaction.Interaction{ID: "m8", OpeningLatencyMs: ms(2500)})
	if tags := Tags(c.Classify(it)); !reflect.DeepEqual(tags, []string{TagOpeningLatencyWarn}) {
		t.Errorf("tags = %v, want OPENING_LATENCY_WARN", tags)
	}

	it = answered(&interaction.Interaction{ID: "m9", OpeningLatencyMs: ms(3500)})
	want := []string{TagOpeningLatencyWarn, TagOpeningLatencyCritical}
	if tags := Tags(c.Classify(it)); !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestClassify_DependsOnlyOnDerivedFields(t *testing.T) {
	// Classification reads derived fields, never raw event order, so two
	// identical records always classify identically.
	c := NewClassifier(DefaultThresholds())
	a := answered(&interaction.Interaction{ID: "x", LatencyMs: ms(3500), OpeningLatencyMs: ms(2100)})
	b := answered(&interaction.Interaction{ID: "x", LatencyMs: ms(3500), OpeningLatencyMs: ms(2100)})

	if !reflect.DeepEqual(Tags(c.Classify(a)), Tags(c.Classify(b))) {
		t.Error("identical derived fields must classify identically")
	}
}

func TestHighestSeverity(t *testing.T) {
	sev, ok := HighestSeverity([]string{TagOutOfOrder, TagLatencySpikeWarn, TagLangUnknown})
	if !ok || sev != SeverityCritical {
		t.Errorf("got %v/%v, want critical", sev, ok)
	}
	sev, ok = HighestSeverity([]string{TagOutOfOrder})
	if !ok || sev != SeverityOperational {
		t.Errorf("got %v/%v, want operational", sev, ok)
	}
	if _, ok := HighestSeverity(nil); ok {
		t.Error("no tags should report no severity")
	}
}
