// Package api serves the processed analytics over a read-only HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jsagir/rambam-analytics/internal/engine"
	"github.com/jsagir/rambam-analytics/internal/metrics"
	"github.com/jsagir/rambam-analytics/internal/rollup"
)

type Server struct {
	router *chi.Mux
	port   int
	srv    *http.Server

	mu     sync.RWMutex
	result *engine.Result
	byDate map[string]*engine.DayResult
}

func NewServer(port int, collector *metrics.Collector) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(collector.InstrumentHandler)

	s := &Server{
		router: router,
		port:   port,
		byDate: map[string]*engine.DayResult{},
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/days", s.days)
	router.Get("/api/v1/days/{date}", s.day)
	router.Get("/api/v1/days/{date}/anomalies", s.dayAnomalies)
	router.Get("/api/v1/days/{date}/stats", s.dayStats)
	router.Get("/api/v1/kpi", s.kpi)
	router.Method(http.MethodGet, "/metrics", collector.Handler())

	return s
}

// SetResult swaps in a freshly processed run. Safe to call while serving.
func (s *Server) SetResult(result *engine.Result) {
	byDate := make(map[string]*engine.DayResult, len(result.Days))
	for _, d := range result.Days {
		byDate[d.ParsedLog.Date] = d
	}
	s.mu.Lock()
	s.result = result
	s.byDate = byDate
	s.mu.Unlock()
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	days := 0
	if s.result != nil {
		days = len(s.result.Days)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"days":   days,
	})
}

func (s *Server) days(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stats := make([]rollup.DailyStat, 0, len(s.byDate))
	if s.result != nil {
		for _, d := range s.result.Days {
			stats = append(stats, d.Stat)
		}
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) day(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(chi.URLParam(r, "date"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown date")
		return
	}
	writeJSON(w, http.StatusOK, d.ParsedLog)
}

func (s *Server) dayAnomalies(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(chi.URLParam(r, "date"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown date")
		return
	}
	writeJSON(w, http.StatusOK, d.Report)
}

func (s *Server) dayStats(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(chi.URLParam(r, "date"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown date")
		return
	}
	writeJSON(w, http.StatusOK, d.Stat)
}

func (s *Server) kpi(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		writeError(w, http.StatusServiceUnavailable, "no data processed yet")
		return
	}
	writeJSON(w, http.StatusOK, s.result.KPI)
}

func (s *Server) lookup(date string) (*engine.DayResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byDate[date]
	return d, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
