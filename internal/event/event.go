// Package event defines the already-tokenized stage events the analytics
// engine consumes. Extraction from the raw kiosk transcript format happens
// upstream; this package only models and loads the tokenized form.
package event

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which stage marker within an exchange an event represents.
type Kind string

const (
	KindSTT          Kind = "stt"           // speech recognized, carries the question text
	KindWaitingAudio Kind = "waiting_audio" // filler utterance started playing
	KindModelReady   Kind = "model_ready"   // model signalled its answer is ready
	KindStreamChunk  Kind = "stream_chunk"  // one chunk of the spoken answer
	KindFinished     Kind = "finished"      // delivery completed
)

// StageEvent is one timestamped marker within an exchange. Immutable,
// produced externally by the log extraction layer.
type StageEvent struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Time        string `json:"time,omitempty"`         // wall clock as logged, e.g. "2026/2/22 7:02:12"
	TimestampMs int64  `json:"timestamp_ms,omitempty"` // unix milliseconds, preferred when present

	// stt fields
	Text string `json:"text,omitempty"`

	// waiting_audio fields
	Language               string `json:"language,omitempty"`
	QuestionType           string `json:"question_type,omitempty"`
	OpeningText            string `json:"opening_text,omitempty"`
	AudioID                string `json:"audio_id,omitempty"`
	OpeningAudioDurationMs int64  `json:"opening_audio_duration_ms,omitempty"`

	// stream_chunk fields
	Result   string `json:"result,omitempty"`
	Finished bool   `json:"finished,omitempty"`

	Code int `json:"code,omitempty"` // upstream status, 0 treated as 200
}

// At returns the event's timestamp. The unix-millisecond field wins over the
// wall-clock string. ok is false when neither parses.
func (e StageEvent) At() (t time.Time, ok bool) {
	if e.TimestampMs > 0 {
		return time.UnixMilli(e.TimestampMs).UTC(), true
	}
	return ParseTime(e.Time)
}

// OK reports whether the event carried a healthy upstream status code.
func (e StageEvent) OK() bool {
	return e.Code == 0 || e.Code == 200
}

// ParseTime parses the two timestamp formats the kiosk emits: RFC 3339 and
// the non-zero-padded "2026/2/22 7:2:12" wall-clock form.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return parseKioskClock(s)
}

// parseKioskClock handles "YYYY/M/D H:M:S" with any field unpadded, which
// time.Parse layouts cannot express.
func parseKioskClock(s string) (time.Time, bool) {
	dateTime := strings.SplitN(s, " ", 2)
	if len(dateTime) != 2 {
		return time.Time{}, false
	}
	d := strings.Split(dateTime[0], "/")
	c := strings.Split(dateTime[1], ":")
	if len(d) != 3 || len(c) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 0, 6)
	for _, part := range append(d, c...) {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return time.Time{}, false
		}
		nums = append(nums, n)
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 ||
		nums[3] > 23 || nums[4] > 59 || nums[5] > 59 {
		return time.Time{}, false
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC), true
}
