// Package api is the HTTP surface of the daemon: run lifecycle endpoints,
// corpus packs and uploads, and the SSE event stream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"llmlab/internal/registry"
	"llmlab/internal/store"
)

// Config wires dependencies for the HTTP handler.
type Config struct {
	Store    *store.Store
	Registry *registry.Registry
	Logger   *slog.Logger
	Now      func() time.Time

	// PollInterval is how often the SSE loop checks for new events.
	PollInterval time.Duration
	// RateLimitPerMinute caps mutating requests per client IP.
	RateLimitPerMinute int
	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string
}

// NewHandler builds the HTTP handler for the run API.
func NewHandler(cfg Config) http.Handler {
	h := &handler{
		store:        cfg.Store,
		registry:     cfg.Registry,
		logger:       cfg.Logger,
		nowFn:        cfg.Now,
		pollInterval: cfg.PollInterval,
		rateLimit:    cfg.RateLimitPerMinute,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.nowFn == nil {
		h.nowFn = time.Now
	}
	if h.pollInterval <= 0 {
		h.pollInterval = 500 * time.Millisecond
	}
	if h.rateLimit <= 0 {
		h.rateLimit = 30
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/packs", h.handleListPacks).Methods(http.MethodGet)
	v1.HandleFunc("/uploads", h.rateLimited("uploads", h.handleUpload)).Methods(http.MethodPost)
	v1.HandleFunc("/runs", h.rateLimited("runs", h.handleCreateRun)).Methods(http.MethodPost)
	v1.HandleFunc("/runs", h.handleListRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{run_id}", h.handleGetRun).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{run_id}/cancel", h.handleCancelRun).Methods(http.MethodPost)
	v1.HandleFunc("/runs/{run_id}/events", h.handleStreamEvents).Methods(http.MethodGet)

	if len(cfg.CORSOrigins) > 0 {
		return corsMiddleware(cfg.CORSOrigins, r)
	}
	return r
}

type handler struct {
	store        *store.Store
	registry     *registry.Registry
	logger       *slog.Logger
	nowFn        func() time.Time
	pollInterval time.Duration
	rateLimit    int
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
