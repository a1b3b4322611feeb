package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DayLog is one calendar day's closed batch of stage events.
type DayLog struct {
	Date   string // YYYY-MM-DD
	File   string
	Events []StageEvent
}

// LoadDayFile reads a JSONL file of tokenized stage events. Malformed lines
// are skipped, not fatal — a bad line costs one event, never the day.
func LoadDayFile(path string) (*DayLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	day := &DayLog{
		Date: DateFromFilename(path),
		File: filepath.Base(path),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev StageEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // skip malformed lines
		}
		day.Events = append(day.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	if day.Date == "" {
		day.Date = dateFromEvents(day.Events)
	}
	return day, nil
}

// ListDayFiles returns the .jsonl files in dir, sorted by name. Callers that
// need per-file failure handling load each path themselves.
func ListDayFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every .jsonl file in dir, one DayLog per file, sorted by date.
func LoadDir(dir string) ([]*DayLog, error) {
	paths, err := ListDayFiles(dir)
	if err != nil {
		return nil, err
	}

	var days []*DayLog
	for _, p := range paths {
		day, err := LoadDayFile(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(p), err)
		}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// DateFromFilename extracts YYYY-MM-DD from stems like "20260215" or
// "20260222-2". Returns "" when the stem is not a date.
func DateFromFilename(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	datePart := strings.SplitN(stem, "-", 2)[0]
	if len(datePart) != 8 {
		return ""
	}
	for _, r := range datePart {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return datePart[:4] + "-" + datePart[4:6] + "-" + datePart[6:8]
}

func dateFromEvents(events []StageEvent) string {
	for _, ev := range events {
		if t, ok := ev.At(); ok {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
