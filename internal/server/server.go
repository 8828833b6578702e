// Package server exposes the sync workflow over a small JSON HTTP API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/store"
)

// Folders is the folder registry used by the folder endpoints
type Folders interface {
	Refresh(ctx context.Context, projectID int) ([]schema.Folder, error)
	Create(ctx context.Context, projectID int, name string, parentID *int) (schema.Folder, error)
}

// History answers the dashboard endpoints
type History interface {
	History(ctx context.Context, limit int) ([]store.HistoryEntry, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Config holds what the server needs besides its collaborators
type Config struct {
	Token    string
	Settings func() schema.AnalysisSettings
	MaxTasks int
	Logger   *slog.Logger
}

// Server is the HTTP API
type Server struct {
	orch     *casesync.Orchestrator
	folders  Folders
	history  History
	token    string
	settings func() schema.AnalysisSettings
	maxTasks int
	logger   *slog.Logger
	server   *http.Server
}

// New creates a Server. history may be nil when no store is configured.
func New(orch *casesync.Orchestrator, folders Folders, history History, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings == nil {
		cfg.Settings = func() schema.AnalysisSettings { return schema.AnalysisSettings{} }
	}
	return &Server{
		orch:     orch,
		folders:  folders,
		history:  history,
		token:    cfg.Token,
		settings: cfg.Settings,
		maxTasks: cfg.MaxTasks,
		logger:   cfg.Logger,
	}
}

// Handler returns the routed handler with auth and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/preview", s.apiPreview)
	mux.HandleFunc("POST /api/analyze", s.apiAnalyze)
	mux.HandleFunc("POST /api/candidates", s.apiCandidates)

	mux.HandleFunc("GET /api/sync", s.apiGetSync)
	mux.HandleFunc("POST /api/sync", s.apiStartSync)
	mux.HandleFunc("POST /api/sync/resolve", s.apiResolve)

	mux.HandleFunc("GET /api/folders/{projectID}", s.apiGetFolders)
	mux.HandleFunc("POST /api/folders/{projectID}", s.apiCreateFolder)

	mux.HandleFunc("GET /api/stats", s.apiGetStats)
	mux.HandleFunc("GET /api/history", s.apiGetHistory)

	return s.withLogging(s.withAuth(mux))
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // a whole sync runs inside one request
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("Starting API server", "addr", addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withAuth requires the bearer token on /api routes when one is configured
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			s.jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging wraps a handler with request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// jsonResponse writes data as JSON
func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	s.jsonStatus(w, data, http.StatusOK)
}

func (s *Server) jsonStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// jsonError writes a JSON error response
func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// fail maps err to a status code and writes it
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Warn("request failed", "error", err)
	}
	s.jsonError(w, err.Error(), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrValidation), errors.Is(err, casesync.ErrAIDisabled):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, casesync.ErrAlreadyInProgress),
		errors.Is(err, casesync.ErrNoActiveConflict),
		errors.Is(err, casesync.ErrSuperseded),
		errors.Is(err, client.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, client.ErrUnauthorized),
		errors.Is(err, client.ErrNetwork),
		errors.Is(err, client.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return client.Validationf("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4<<20))
	if err := dec.Decode(v); err != nil {
		return client.Validationf("invalid request body: %v", err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n <= 0 {
		return 0, client.Validationf("%s must be a positive integer", name)
	}
	return n, nil
}
