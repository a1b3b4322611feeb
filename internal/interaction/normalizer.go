package interaction

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jsagir/rambam-analytics/internal/event"
)

// Normalizer converts the ordered stage events of each exchange into one
// Interaction with derived latency fields. It never fails on malformed
// sequences — a partial exchange produces a partial record and the batch
// flows on.
type Normalizer struct {
	durations AudioDurations
	logger    *slog.Logger
}

func NewNormalizer(durations AudioDurations, logger *slog.Logger) *Normalizer {
	if durations == nil {
		durations = DefaultAudioDurations()
	}
	return &Normalizer{durations: durations, logger: logger}
}

// NormalizeDay groups a day's stage events into exchanges and normalizes
// each, returning interactions sorted ascending by timestamp. The sort is
// stable: ties keep original log order.
func (n *Normalizer) NormalizeDay(day *event.DayLog) []*Interaction {
	exchanges, orphans := groupExchanges(day.Events)

	out := make([]*Interaction, 0, len(exchanges)+len(orphans))
	for _, ex := range exchanges {
		out = append(out, n.Normalize(ex, day.Date))
	}
	for _, stt := range orphans {
		out = append(out, n.normalizeOrphan(stt, day.Date))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].HasTime || !out[j].HasTime {
			return false // undated records keep their relative position
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Normalize builds one Interaction from the stage events of one exchange.
func (n *Normalizer) Normalize(events []event.StageEvent, date string) *Interaction {
	it := &Interaction{Date: date, Language: "unknown"}

	var sttAt, waitingAt, readyAt, firstChunkAt, finishedAt time.Time
	var haveSTT, haveWaiting, haveReady, haveFirstChunk, haveFinished bool
	waitingIdx, readyIdx := -1, -1
	var chunks []string

	for idx, ev := range events {
		if it.ID == "" && ev.ID != "" {
			it.ID = ev.ID
		}
		at, hasAt := ev.At()
		if !ev.OK() {
			it.ErrorCodes = append(it.ErrorCodes, ev.Code)
		}

		switch ev.Kind {
		case event.KindSTT:
			it.Question = ev.Text
			it.Time = ev.Time
			if hasAt {
				sttAt, haveSTT = at, true
			}
		case event.KindWaitingAudio:
			if ev.Language != "" {
				it.Language = ev.Language
			}
			it.QuestionType = ev.QuestionType
			it.OpeningText = ev.OpeningText
			it.AudioID = ev.AudioID
			if ev.OpeningAudioDurationMs > 0 {
				it.OpeningAudioDurationMs = ms(ev.OpeningAudioDurationMs)
			}
			waitingIdx = idx
			if hasAt {
				waitingAt, haveWaiting = at, true
			}
		case event.KindModelReady:
			readyIdx = idx
			if hasAt {
				readyAt, haveReady = at, true
			}
		case event.KindStreamChunk:
			if ev.Result != "" {
				chunks = append(chunks, ev.Result)
				if hasAt && !haveFirstChunk {
					firstChunkAt, haveFirstChunk = at, true
				}
			}
			if ev.Finished {
				haveFinished = true
				if hasAt {
					finishedAt = at
				}
			}
		case event.KindFinished:
			haveFinished = true
			if hasAt {
				finishedAt = at
			}
		}
	}

	if it.ID == "" {
		it.ID = uuid.NewString()
	}

	it.Answer = strings.Join(chunks, "")
	it.AnswerLength = len(it.Answer)
	it.ChunkCount = len(chunks)
	it.IsComplete = haveFinished
	// A response counts as an answer only when text was produced and the
	// delivery boundary was observed.
	it.IsNoAnswer = strings.TrimSpace(it.Answer) == "" || !haveFinished

	// The model's answer physically became available before the system had
	// begun playing the stalling sentence — a race between two independently
	// timed subsystems.
	it.IsOutOfOrder = readyIdx >= 0 && (waitingIdx < 0 || readyIdx < waitingIdx)

	// Anchor the record's wall clock on the stt marker, falling back to the
	// first timestamped event. Only a real stt marker anchors latencies.
	anchorAt, haveAnchor := sttAt, haveSTT
	if !haveAnchor {
		for _, ev := range events {
			if evAt, ok := ev.At(); ok {
				anchorAt, haveAnchor = evAt, true
				if it.Time == "" {
					it.Time = ev.Time
				}
				break
			}
		}
	}
	if haveAnchor {
		it.At, it.HasTime = anchorAt, true
		it.Hour = anchorAt.Hour()
		if it.Date == "" {
			it.Date = anchorAt.Format("2006-01-02")
		}
		if it.Time == "" {
			it.Time = anchorAt.Format("2006/1/2 15:04:05")
		}
	}

	// Latency derivations. A missing boundary marker leaves everything past
	// it nil — zero would falsely imply instantaneous completion.
	if haveSTT {
		if haveFirstChunk {
			it.LatencyMs = delta(sttAt, firstChunkAt)
		}
		if haveWaiting {
			it.OpeningLatencyMs = delta(sttAt, waitingAt)
		}
		if haveReady {
			it.AIThinkMs = delta(sttAt, readyAt)
		}
	}
	if haveFirstChunk && haveFinished && !finishedAt.IsZero() {
		it.StreamDurationMs = delta(firstChunkAt, finishedAt)
	}

	// ai_think can never exceed the whole exchange; drop it when the two
	// subsystem clocks disagree that badly.
	if it.AIThinkMs != nil && haveSTT && haveFinished && !finishedAt.IsZero() {
		if total := delta(sttAt, finishedAt); total != nil && *it.AIThinkMs > *total {
			n.logf("ai_think exceeds total latency, dropping", "id", it.ID)
			it.AIThinkMs = nil
		}
	}

	if it.OpeningAudioDurationMs == nil && it.AudioID != "" {
		if d, ok := n.durations[it.AudioID]; ok {
			it.OpeningAudioDurationMs = ms(d)
		}
	}
	if it.AIThinkMs != nil && it.OpeningAudioDurationMs != nil {
		it.NetGapMs = ms(*it.AIThinkMs - *it.OpeningAudioDurationMs)
	}

	n.classifyContent(it)
	return it
}

// normalizeOrphan builds a record for an stt marker that no response stream
// ever answered.
func (n *Normalizer) normalizeOrphan(stt event.StageEvent, date string) *Interaction {
	it := &Interaction{
		ID:         "orphan_" + uuid.NewString()[:8],
		Date:       date,
		Time:       stt.Time,
		Question:   stt.Text,
		Language:   "unknown",
		IsNoAnswer: true,
	}
	if at, ok := stt.At(); ok {
		it.At, it.HasTime = at, true
		it.Hour = at.Hour()
		if it.Date == "" {
			it.Date = at.Format("2006-01-02")
		}
	}
	n.classifyContent(it)
	return it
}

// classifyContent fills the content-derived fields from the question and
// answer text.
func (n *Normalizer) classifyContent(it *Interaction) {
	if it.Question != "" {
		it.Topic = ClassifyTopic(it.Question)
		it.Sensitivity = RateSensitivity(it.Topic, it.Question)
		it.IsGreeting = IsGreeting(it.Question)
		it.VIP = DetectVIP(it.Question)
		it.IsThankYouInterrupt, it.ThankYouType = DetectThankYou(it.Question)
		if it.Language == "unknown" || it.Language == "" {
			if lang := DetectLanguage(it.Question); lang != "unknown" {
				it.Language = lang
			}
		}
	} else {
		it.Topic = "General"
		it.Sensitivity = SensitivityLow
	}
	if it.QuestionType == "" {
		if it.IsGreeting {
			it.QuestionType = "Greeting"
		} else {
			it.QuestionType = "General"
		}
	}
	it.IsComprehensionFailure = IsComprehensionFailure(it.Answer)
}

func (n *Normalizer) logf(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}

// delta returns the millisecond difference, or nil when it would be
// negative — a negative latency is a data-quality problem, not a value.
func delta(from, to time.Time) *int64 {
	d := to.Sub(from).Milliseconds()
	if d < 0 {
		return nil
	}
	return ms(d)
}

// groupExchanges splits a day's events into per-exchange sequences. Events
// sharing an id form one exchange; stt markers are matched to the first
// following response stream, and any left over become orphans.
func groupExchanges(events []event.StageEvent) (exchanges [][]event.StageEvent, orphans []event.StageEvent) {
	type group struct {
		id     string
		events []event.StageEvent
		start  time.Time
		hasAt  bool
	}

	var groups []*group
	byID := make(map[string]*group)
	var stts []event.StageEvent

	for _, ev := range events {
		if ev.Kind == event.KindSTT {
			stts = append(stts, ev)
			continue
		}
		id := ev.ID
		g, ok := byID[id]
		if !ok || id == "" {
			g = &group{id: id}
			groups = append(groups, g)
			if id != "" {
				byID[id] = g
			}
		}
		if !g.hasAt {
			if at, ok := ev.At(); ok {
				g.start, g.hasAt = at, true
			}
		}
		g.events = append(g.events, ev)
	}

	// Match each response group with the latest unused stt at or before its
	// first timestamp.
	used := make(map[int]bool, len(stts))
	for _, g := range groups {
		best := -1
		var bestAt time.Time
		if g.hasAt {
			for i, stt := range stts {
				if used[i] {
					continue
				}
				at, ok := stt.At()
				if !ok || at.After(g.start) {
					continue
				}
				if best < 0 || at.After(bestAt) {
					best, bestAt = i, at
				}
			}
		}
		if best >= 0 {
			used[best] = true
			g.events = append([]event.StageEvent{stts[best]}, g.events...)
		}
		exchanges = append(exchanges, g.events)
	}

	for i, stt := range stts {
		if !used[i] {
			orphans = append(orphans, stt)
		}
	}
	return exchanges, orphans
}
