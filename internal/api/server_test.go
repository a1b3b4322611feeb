package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jsagir/rambam-analytics/internal/engine"
	"github.com/jsagir/rambam-analytics/internal/event"
	"github.com/jsagir/rambam-analytics/internal/metrics"
	"github.com/jsagir/rambam-analytics/internal/rollup"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	s := NewServer(0, collector)

	eng := engine.New(engine.Options{
		Workers: 1,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	base := time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)
	at := func(offset time.Duration) int64 { return base.Add(offset).UnixMilli() }
	day := &event.DayLog{Date: "2026-02-22", Events: []event.StageEvent{
		{ID: "a", Kind: event.KindSTT, TimestampMs: at(0), Text: "Is chicken kosher?"},
		{ID: "a", Kind: event.KindWaitingAudio, TimestampMs: at(1200 * time.Millisecond),
			Language: "en-US", AudioID: "3"},
		{ID: "a", Kind: event.KindModelReady, TimestampMs: at(2200 * time.Millisecond)},
		{ID: "a", Kind: event.KindStreamChunk, TimestampMs: at(2800 * time.Millisecond),
			Result: "Yes, with conditions.", Finished: true},
	}}
	dayRes := eng.ProcessDay(day)
	s.SetResult(&engine.Result{
		Days: []*engine.DayResult{dayRes},
		KPI:  rollup.BuildKPI([]rollup.DailyStat{dayRes.Stat}, nil),
	})
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	rr := get(t, testServer(t), "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["days"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestDaysList(t *testing.T) {
	rr := get(t, testServer(t), "/api/v1/days")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats []rollup.DailyStat
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stats) != 1 || stats[0].Date != "2026-02-22" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDayByDate(t *testing.T) {
	rr := get(t, testServer(t), "/api/v1/days/2026-02-22")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var parsed engine.ParsedLog
	if err := json.Unmarshal(rr.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.TotalInteractions != 1 || parsed.Interactions[0].Question != "Is chicken kosher?" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestDayNotFound(t *testing.T) {
	s := testServer(t)
	for _, path := range []string{
		"/api/v1/days/2025-01-01",
		"/api/v1/days/2025-01-01/anomalies",
		"/api/v1/days/2025-01-01/stats",
	} {
		if rr := get(t, s, path); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rr.Code)
		}
	}
}

func TestDayAnomaliesAndStats(t *testing.T) {
	s := testServer(t)

	rr := get(t, s, "/api/v1/days/2026-02-22/anomalies")
	if rr.Code != http.StatusOK {
		t.Fatalf("anomalies status = %d", rr.Code)
	}
	var report struct {
		Summary struct {
			TotalInteractions int `json:"total_interactions"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Summary.TotalInteractions != 1 {
		t.Errorf("report summary = %+v", report.Summary)
	}

	rr = get(t, s, "/api/v1/days/2026-02-22/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rr.Code)
	}
	var stat rollup.DailyStat
	if err := json.Unmarshal(rr.Body.Bytes(), &stat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stat.TotalInteractions != 1 || stat.Health != rollup.HealthHealthy {
		t.Errorf("stat = %+v", stat)
	}
}

func TestKPI(t *testing.T) {
	rr := get(t, testServer(t), "/api/v1/kpi")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var kpi rollup.KPI
	if err := json.Unmarshal(rr.Body.Bytes(), &kpi); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if kpi.TotalInteractions != 1 || kpi.TotalDays != 1 {
		t.Errorf("kpi = %+v", kpi)
	}
}

func TestKPIBeforeProcessing(t *testing.T) {
	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	s := NewServer(0, collector)
	if rr := get(t, s, "/api/v1/kpi"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("kpi without data = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	get(t, s, "/health")
	rr := get(t, s, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "rambam_http_requests_total") {
		t.Error("http metrics missing from scrape output")
	}
}
