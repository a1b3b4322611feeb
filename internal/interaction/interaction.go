// Package interaction builds enriched interaction records from the raw
// stage events of one exchange: derived latencies, content classification,
// and the flags the rest of the engine reads.
package interaction

import "time"

// ThankYouType distinguishes the two operationally opposite "thank you"s:
// the English phrase is a kill switch that stops the kiosk mid-sentence,
// the Hebrew one is plain politeness.
const (
	ThankYouStop   = "stop"
	ThankYouPolite = "polite"
)

// Sensitivity levels for visitor questions.
const (
	SensitivityLow      = "low"
	SensitivityMedium   = "medium"
	SensitivityHigh     = "high"
	SensitivityCritical = "critical"
)

// Interaction is one visitor question plus the kiosk's response, with
// derived timing. Constructed once by the Normalizer; the anomaly classifier
// attaches tags exactly once; immutable thereafter.
type Interaction struct {
	ID   string `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // wall clock as logged
	Hour int    `json:"hour"`

	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Language     string `json:"language"`
	Topic        string `json:"topic"`
	Sensitivity  string `json:"sensitivity"`
	QuestionType string `json:"question_type"`
	OpeningText  string `json:"opening_text"`
	AudioID      string `json:"audio_id"`
	AnswerLength int    `json:"answer_length"`
	ChunkCount   int    `json:"chunk_count"`
	VIP          string `json:"vip,omitempty"`

	IsGreeting             bool   `json:"is_greeting"`
	IsThankYouInterrupt    bool   `json:"is_thank_you_interrupt"`
	ThankYouType           string `json:"thank_you_type,omitempty"`
	IsComprehensionFailure bool   `json:"is_comprehension_failure"`
	IsNoAnswer             bool   `json:"is_no_answer"`
	IsOutOfOrder           bool   `json:"is_out_of_order"`
	IsComplete             bool   `json:"is_complete"`

	// Latency bundle. Nil means the boundary event was missing — never zero,
	// which would falsely imply instantaneous completion.
	LatencyMs              *int64 `json:"latency_ms"`
	OpeningLatencyMs       *int64 `json:"opening_latency_ms"`
	AIThinkMs              *int64 `json:"ai_think_ms"`
	StreamDurationMs       *int64 `json:"stream_duration_ms"`
	NetGapMs               *int64 `json:"net_gap_ms"`
	OpeningAudioDurationMs *int64 `json:"opening_audio_duration_ms"`

	// Non-200 upstream codes observed during the exchange.
	ErrorCodes []int `json:"error_codes,omitempty"`

	Anomalies []string `json:"anomalies"`
	IsAnomaly bool     `json:"is_anomaly"`

	// Parsed timestamp for segmentation and rollups; not serialized.
	At      time.Time `json:"-"`
	HasTime bool      `json:"-"`
}

// SetAnomalies attaches the classifier's result. Called exactly once, after
// which the record is treated as read-only.
func (i *Interaction) SetAnomalies(tags []string) {
	i.Anomalies = tags
	i.IsAnomaly = len(tags) > 0
}

// Seamless reports whether the model finished thinking before the filler
// utterance ran out, leaving no audible gap.
func (i *Interaction) Seamless() bool {
	return i.AIThinkMs != nil && i.OpeningAudioDurationMs != nil &&
		*i.AIThinkMs < *i.OpeningAudioDurationMs
}

func ms(v int64) *int64 { return &v }
