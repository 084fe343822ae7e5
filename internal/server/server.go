// Package server exposes the Mutecast control surface over HTTP: health and
// readiness probes, Prometheus metrics, live status, pattern-library
// management, runtime threshold tuning, and a websocket event stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mutecast/mutecast/internal/detect"
	"github.com/mutecast/mutecast/internal/health"
	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/internal/observe"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP control surface. Create with [New], run with
// [Server.Run].
type Server struct {
	addr    string
	monitor *detect.Monitor
	lib     *library.Library
	store   library.Store
	hub     *Hub
	health  *health.Handler
	handler http.Handler
}

// New assembles the server and its routes. The store may be nil, in which
// case pattern deletions affect only the in-memory library. The returned
// server's [Hub] is already registered; callers attach it to the monitor
// via [detect.Monitor.AddListener].
func New(addr string, monitor *detect.Monitor, lib *library.Library, store library.Store, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Server{
		addr:    addr,
		monitor: monitor,
		lib:     lib,
		store:   store,
		hub:     NewHub(),
		health:  health.New(),
	}

	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/patterns", s.handleListPatterns)
	mux.HandleFunc("DELETE /api/patterns/{name}", s.handleDeletePattern)
	mux.HandleFunc("PUT /api/threshold", s.handleSetThreshold)
	mux.Handle("GET /api/events", s.hub)

	s.handler = observe.Middleware(metrics)(mux)
	return s
}

// Hub returns the event fan-out hub, for registration as a monitor listener.
func (s *Server) Hub() *Hub { return s.hub }

// Health returns the health handler so components can register readiness
// checks.
func (s *Server) Health() *health.Handler { return s.health }

// Handler returns the full middleware-wrapped handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// Returns ctx.Err on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return ctx.Err()
}

// handleStatus reports the monitor's current snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Status())
}

// handleListPatterns returns all library patterns sorted by name.
func (s *Server) handleListPatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Patterns []library.Info `json:"patterns"`
	}{Patterns: s.lib.List()})
}

// handleDeletePattern removes a pattern by name. An inexact name is resolved
// against the library with fuzzy matching, so `DELETE /api/patterns/acme`
// removes "ACME Spring Sale" when it is the only close candidate.
func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "pattern name required")
		return
	}

	if _, ok := s.lib.Get(name); !ok {
		resolved, score, ok := s.lib.FindClosest(name, 0)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no pattern matching %q", name))
			return
		}
		slog.Info("pattern name resolved fuzzily",
			"requested", name,
			"resolved", resolved.Name,
			"score", score,
		)
		name = resolved.Name
	}

	s.lib.Remove(name)
	if s.store != nil {
		if err := s.store.Delete(r.Context(), name); err != nil {
			slog.Error("pattern store delete failed", "name", name, "err", err)
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("pattern %q removed from memory but not from store", name))
			return
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Deleted string `json:"deleted"`
	}{Deleted: name})
}

// thresholdRequest is the body of PUT /api/threshold.
type thresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

// handleSetThreshold updates the match threshold at runtime.
func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.monitor.SetThreshold(req.Threshold); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, thresholdRequest{Threshold: req.Threshold})
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}
