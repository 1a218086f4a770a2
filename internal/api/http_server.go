package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"driftq/internal/config"
	"driftq/internal/export"
	"driftq/internal/models"
	"driftq/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the admin API for the sync engine.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      *service.SyncService
	exporter *export.Exporter
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc *service.SyncService, exporter *export.Exporter, logger zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, exporter: exporter, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/sync/status", srv.handleStatus)
	apiMux.HandleFunc("/api/v1/sync/log", srv.handleLog)
	apiMux.HandleFunc("/api/v1/sync/trigger", srv.handleTrigger)
	apiMux.HandleFunc("/api/v1/sync/clear", srv.handleClear)
	apiMux.HandleFunc("/api/v1/sync/config", srv.handleConfig)
	apiMux.HandleFunc("/api/v1/sync/export", srv.handleExport)

	// Health and metrics stay outside the auth wrapper so probes and
	// scrapers do not need API keys.
	root := http.NewServeMux()
	root.HandleFunc("/healthz", srv.handleHealth)
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/api/v1/", srv.auth.Wrap(apiMux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(root, logger),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler. Exposed for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.svc.IsOnline(),
	})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.svc.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   status.Total,
		"pending": status.Pending,
		"failed":  status.Failed,
		"online":  s.svc.IsOnline(),
	})
}

func (s *HTTPServer) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.svc.GetSyncLog(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read sync log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.svc.IsOnline() {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"attempted": 0,
			"online":    false,
		})
		return
	}

	// Drain reports how many items it attempted; per-item outcomes land
	// in the sync log.
	attempted := s.svc.Drain(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"attempted": attempted,
		"online":    true,
	})
}

func (s *HTTPServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.svc.ClearQueue(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.Config())
	case http.MethodPatch, http.MethodPut:
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		var patch models.SyncConfigPatch
		if err := decoder.Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		writeJSON(w, http.StatusOK, s.svc.UpdateConfig(patch))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are not configured")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.svc.GetSyncLog(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read sync log")
		return
	}

	path, err := s.exporter.ExportSyncLog(entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_path": path, "entries": len(entries)})
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
