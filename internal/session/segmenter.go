// Package session infers visitor dwells from timing gaps between
// interactions. Segmentation is pure: it depends only on the sorted
// timestamps and the gap threshold, so recomputing it over the same day is
// idempotent.
package session

import (
	"log/slog"
	"sort"
	"time"

	"github.com/jsagir/rambam-analytics/internal/interaction"
)

// DefaultGap is the idle time that separates two visitor dwells.
const DefaultGap = 30 * time.Minute

// Session is a run of consecutive same-day interactions whose gaps stay
// under the threshold. It holds read-only references to interactions owned
// by the day's collection — it never copies or mutates them.
type Session struct {
	SessionNumber    int                        `json:"session_number"`
	Date             string                     `json:"date"`
	StartTime        string                     `json:"start_time"`
	EndTime          string                     `json:"end_time"`
	InteractionCount int                        `json:"interaction_count"`
	Questions        int                        `json:"questions"` // greetings excluded
	Languages        []string                   `json:"languages"`
	DurationMinutes  float64                    `json:"duration_minutes"`
	Interactions     []*interaction.Interaction `json:"interactions"`
}

type Segmenter struct {
	gap    time.Duration
	logger *slog.Logger
}

func NewSegmenter(gap time.Duration, logger *slog.Logger) *Segmenter {
	if gap <= 0 {
		gap = DefaultGap
	}
	return &Segmenter{gap: gap, logger: logger}
}

// Segment groups one day's interactions into sessions. A new session starts
// whenever the gap to the previous interaction exceeds the threshold, or
// when there is no previous interaction. An interaction with no parsable
// timestamp joins whatever session is open rather than forcing a break — a
// parse error must not fragment a real dwell.
func (s *Segmenter) Segment(interactions []*interaction.Interaction) []*Session {
	if len(interactions) == 0 {
		return nil
	}

	// Stable sort by timestamp; ties and untimed records keep log order.
	ordered := make([]*interaction.Interaction, len(interactions))
	copy(ordered, interactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].HasTime || !ordered[j].HasTime {
			return false
		}
		return ordered[i].At.Before(ordered[j].At)
	})

	var sessions []*Session
	var current []*interaction.Interaction
	var lastAt time.Time
	var haveLast bool

	flush := func() {
		if len(current) > 0 {
			sessions = append(sessions, build(current, len(sessions)+1))
			current = nil
		}
	}

	for _, it := range ordered {
		if !it.HasTime {
			if s.logger != nil {
				s.logger.Warn("interaction without parsable timestamp kept in open session", "id", it.ID)
			}
			current = append(current, it)
			continue
		}
		if haveLast && it.At.Sub(lastAt) > s.gap {
			flush()
		}
		current = append(current, it)
		lastAt, haveLast = it.At, true
	}
	flush()

	return sessions
}

func build(interactions []*interaction.Interaction, number int) *Session {
	sess := &Session{
		SessionNumber:    number,
		InteractionCount: len(interactions),
		Interactions:     interactions,
	}

	langs := make(map[string]bool)
	var first, last time.Time
	var haveTime bool
	for _, it := range interactions {
		if sess.Date == "" {
			sess.Date = it.Date
		}
		if !it.IsGreeting {
			sess.Questions++
		}
		if it.Language != "" && it.Language != "unknown" {
			langs[it.Language] = true
		}
		if it.HasTime {
			if !haveTime {
				first, last, haveTime = it.At, it.At, true
			} else {
				if it.At.Before(first) {
					first = it.At
				}
				if it.At.After(last) {
					last = it.At
				}
			}
		}
		if sess.StartTime == "" && it.Time != "" {
			sess.StartTime = it.Time
		}
		if it.Time != "" {
			sess.EndTime = it.Time
		}
	}
	if haveTime {
		sess.DurationMinutes = last.Sub(first).Minutes()
	}

	sess.Languages = make([]string, 0, len(langs))
	for lang := range langs {
		sess.Languages = append(sess.Languages, lang)
	}
	sort.Strings(sess.Languages)
	return sess
}
