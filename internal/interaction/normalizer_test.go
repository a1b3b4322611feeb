package interaction

import (
	"testing"
	"time"

	"github.com/jsagir/rambam-analytics/internal/event"
)

var base = time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)

func at(offset time.Duration) int64 { return base.Add(offset).UnixMilli() }

func fullExchange(id string) []event.StageEvent {
	return []event.StageEvent{
		{ID: id, Kind: event.KindSTT, TimestampMs: at(0), Time: "2026/2/22 10:00:00", Text: "What is kosher meat?"},
		{ID: id, Kind: event.KindWaitingAudio, TimestampMs: at(1200 * time.Millisecond), Language: "en-US", QuestionType: "Open questions", AudioID: "3", OpeningText: "Let me ponder that"},
		{ID: id, Kind: event.KindModelReady, TimestampMs: at(2500 * time.Millisecond)},
		{ID: id, Kind: event.KindStreamChunk, TimestampMs: at(3700 * time.Millisecond), Result: "Kosher meat "},
		{ID: id, Kind: event.KindStreamChunk, TimestampMs: at(9700 * time.Millisecond), Result: "must be slaughtered properly.", Finished: true},
	}
}

func TestNormalize_LatencyBundle(t *testing.T) {
	n := NewNormalizer(nil, nil)
	it := n.Normalize(fullExchange("m1"), "2026-02-22")

	wantMs := func(name string, got *int64, want int64) {
		t.Helper()
		if got == nil {
			t.Fatalf("%s is nil, want %d", name, want)
		}
		if *got != want {
			t.Errorf("%s = %d, want %d", name, *got, want)
		}
	}

	wantMs("latency_ms", it.LatencyMs, 3700)
	wantMs("opening_latency_ms", it.OpeningLatencyMs, 1200)
	wantMs("ai_think_ms", it.AIThinkMs, 2500)
	wantMs("stream_duration_ms", it.StreamDurationMs, 6000)
	// Default duration table has clip 3 at 2650ms.
	wantMs("opening_audio_duration_ms", it.OpeningAudioDurationMs, 2650)
	wantMs("net_gap_ms", it.NetGapMs, -150)

	if !it.Seamless() {
		t.Error("think 2500ms under 2650ms clip should be seamless")
	}
	if it.IsNoAnswer || !it.IsComplete {
		t.Errorf("is_no_answer=%v is_complete=%v, want false/true", it.IsNoAnswer, it.IsComplete)
	}
	if it.IsOutOfOrder {
		t.Error("in-order exchange flagged out of order")
	}
	if it.Answer != "Kosher meat must be slaughtered properly." {
		t.Errorf("answer = %q", it.Answer)
	}
	if it.Language != "en-US" || it.Topic != "Kashrut" {
		t.Errorf("language=%q topic=%q", it.Language, it.Topic)
	}
	if it.Hour != 10 {
		t.Errorf("hour = %d, want 10", it.Hour)
	}
}

func TestNormalize_MissingFinished(t *testing.T) {
	events := fullExchange("m2")
	events[4].Finished = false // delivery never concluded

	it := NewNormalizer(nil, nil).Normalize(events, "2026-02-22")

	if it.StreamDurationMs != nil {
		t.Errorf("stream_duration_ms = %d, want nil past the missing marker", *it.StreamDurationMs)
	}
	if !it.IsNoAnswer {
		t.Error("missing finished marker must set is_no_answer")
	}
	if it.IsComplete {
		t.Error("is_complete should be false without a finished marker")
	}
	// Latencies before the missing boundary survive.
	if it.LatencyMs == nil || *it.LatencyMs != 3700 {
		t.Error("latency_ms before the missing marker should survive")
	}
}

func TestNormalize_MissingSTT_TimeAnchorsOnFirstEvent(t *testing.T) {
	events := fullExchange("m3")[1:] // no stt marker at all

	it := NewNormalizer(nil, nil).Normalize(events, "2026-02-22")

	if it.LatencyMs != nil || it.OpeningLatencyMs != nil || it.AIThinkMs != nil {
		t.Error("latencies anchored on a missing stt must be nil")
	}
	if !it.HasTime {
		t.Error("record should anchor on first timestamped event")
	}
	if it.Question != "" {
		t.Errorf("question = %q, want empty", it.Question)
	}
}

func TestNormalize_OutOfOrder(t *testing.T) {
	id := "m4"
	events := []event.StageEvent{
		{ID: id, Kind: event.KindSTT, TimestampMs: at(0), Text: "מה דעתך על צדק?"},
		// The model answered before the stalling sentence started playing.
		{ID: id, Kind: event.KindModelReady, TimestampMs: at(900 * time.Millisecond)},
		{ID: id, Kind: event.KindWaitingAudio, TimestampMs: at(1100 * time.Millisecond), Language: "he-IL", AudioID: "1"},
		{ID: id, Kind: event.KindStreamChunk, TimestampMs: at(1300 * time.Millisecond), Result: "צדק צדק תרדוף", Finished: true},
	}

	it := NewNormalizer(nil, nil).Normalize(events, "2026-02-22")

	if !it.IsOutOfOrder {
		t.Error("model_ready before waiting_audio must set is_out_of_order")
	}
	if it.AIThinkMs == nil || *it.AIThinkMs != 900 {
		t.Error("ai_think_ms should still be computed for out-of-order exchanges")
	}
}

func TestNormalize_GeneratesIDWhenMissing(t *testing.T) {
	events := fullExchange("")
	it := NewNormalizer(nil, nil).Normalize(events, "2026-02-22")
	if it.ID == "" {
		t.Error("expected a generated id for an exchange without one")
	}
}

func TestNormalizeDay_GroupsAndSorts(t *testing.T) {
	day := &event.DayLog{Date: "2026-02-22"}
	// Second exchange logged first; stt markers interleaved with streams.
	late := fullExchange("late")
	for i := range late {
		late[i].TimestampMs += int64(time.Hour / time.Millisecond)
	}
	day.Events = append(day.Events, late...)
	day.Events = append(day.Events, fullExchange("early")...)
	// Orphaned stt with no response stream.
	day.Events = append(day.Events, event.StageEvent{
		Kind: event.KindSTT, TimestampMs: at(30 * time.Minute), Text: "hello there",
	})

	out := NewNormalizer(nil, nil).NormalizeDay(day)

	if len(out) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(out))
	}
	if out[0].ID != "early" || out[2].ID != "late" {
		t.Errorf("not sorted by time: %s, %s, %s", out[0].ID, out[1].ID, out[2].ID)
	}
	orphan := out[1]
	if !orphan.IsNoAnswer {
		t.Error("orphan stt should be marked is_no_answer")
	}
	if !orphan.IsGreeting {
		t.Error("orphan greeting not classified")
	}
	if orphan.Date != "2026-02-22" {
		t.Errorf("orphan date = %q", orphan.Date)
	}
}

func TestNormalize_ErrorCodesCollected(t *testing.T) {
	events := fullExchange("m5")
	events[3].Code = 500

	it := NewNormalizer(nil, nil).Normalize(events, "2026-02-22")

	if len(it.ErrorCodes) != 1 || it.ErrorCodes[0] != 500 {
		t.Errorf("error_codes = %v, want [500]", it.ErrorCodes)
	}
}
