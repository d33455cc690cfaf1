package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
	"github.com/ogulcanaydogan/credit-monitor/pkg/monitor"
	"github.com/ogulcanaydogan/credit-monitor/pkg/scheduler"
	"github.com/ogulcanaydogan/credit-monitor/pkg/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	requestTimeout     = 10 * time.Second
	manualFetchTimeout = 10 * time.Minute
)

// Server exposes the monitor operations as a JSON API.
type Server struct {
	monitor *monitor.Service
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewServer creates an API server.
func NewServer(m *monitor.Service, logger *slog.Logger) *Server {
	s := &Server{
		monitor: m,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /setup", s.handleSetup)
	s.mux.HandleFunc("POST /manual-fetch", s.handleManualFetch)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /config", s.handleConfig)
	s.mux.HandleFunc("GET /api/v1/checks", s.handleChecks)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// withCORS allows the operator UI to call the API from another origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"scheduler": string(s.monitor.SchedulerState()),
	})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var cfg model.Configuration
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&cfg); err != nil {
		if errors.Is(err, model.ErrMissingLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.monitor.Setup(ctx, &cfg); err != nil {
		if errors.Is(err, monitor.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("setup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration saved successfully."})
}

func (s *Server) handleManualFetch(w http.ResponseWriter, r *http.Request) {
	// The check outlives a dropped client connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), manualFetchTimeout)
	defer cancel()

	// A full retry budget can outlast server.write_timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(manualFetchTimeout + requestTimeout)); err != nil {
		s.logger.Debug("extend write deadline", "error", err)
	}

	rec, err := s.monitor.ManualFetch(ctx)
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, scheduler.ErrNoConfig):
		writeError(w, http.StatusBadRequest, "no configuration; call /setup first")
		return
	case err != nil:
		s.logger.Error("manual fetch", "error", err)
		writeError(w, http.StatusInternalServerError, "manual fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Manual fetch completed.",
		"check":   rec,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := s.monitor.GetStatus(ctx)
	if err != nil {
		s.logger.Error("get status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cfg, err := s.monitor.GetConfig(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no configuration found")
		return
	}
	if err != nil {
		s.logger.Error("get config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	checks, err := s.monitor.History(ctx, limit)
	if err != nil {
		s.logger.Error("list checks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if checks == nil {
		checks = []model.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, checks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
