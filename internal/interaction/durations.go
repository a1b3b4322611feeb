package interaction

import (
	"encoding/json"
	"fmt"
	"os"
)

// AudioDurations maps an opening-clip audio id to the clip's length in
// milliseconds. The classifier uses it for THINK_OVERFLOW and the normalizer
// for net-gap and seamlessness when the event stream does not carry the
// duration itself.
type AudioDurations map[string]int64

// DefaultAudioDurations returns the measured lengths of the pre-recorded
// opening clips shipped with the exhibit.
func DefaultAudioDurations() AudioDurations {
	return AudioDurations{
		"1": 2840,
		"2": 3120,
		"3": 2650,
		"4": 3480,
		"5": 2970,
		"6": 3250,
		"7": 2780,
		"8": 3610,
	}
}

// LoadAudioDurations reads a {"audio_id": duration_ms} JSON file, merged over
// the defaults so partial files only override what they name.
func LoadAudioDurations(path string) (AudioDurations, error) {
	out := DefaultAudioDurations()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read durations: %w", err)
	}
	var loaded map[string]int64
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse durations: %w", err)
	}
	for id, d := range loaded {
		out[id] = d
	}
	return out, nil
}
