// Package api provides the HTTP server for modelbay: catalog queries,
// download control and the transfer event stream, on top of chi.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/health"
)

// Catalog is the model catalog surface: read the current snapshot, resolve
// ids, trigger a synchronous refresh.
type Catalog interface {
	Current() domain.Snapshot
	LastRefresh() (time.Time, bool)
	Lookup(id string) (domain.ModelDescriptor, bool)
	Refresh(ctx context.Context) (domain.Snapshot, error)
}

// Downloads is the scheduler surface the HTTP layer drives.
type Downloads interface {
	Enqueue(d domain.ModelDescriptor) (domain.TransferState, error)
	Get(id string) (domain.TransferState, error)
	States() []domain.TransferState
	Pause(id string) error
	Resume(id string) error
	Cancel(id string) error
	Retry(id string) error
	Dismiss(id string) error
	Subscribe() (<-chan domain.TransferEvent, func())
}

// Library lists installed artifacts.
type Library interface {
	List() ([]domain.InstalledModel, error)
}

// Health reports component check results.
type Health interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the modelbay HTTP API server.
type Server struct {
	catalog        Catalog
	downloads      Downloads
	library        Library
	checker        Health
	profile        domain.ResourceProfile
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(catalog Catalog, downloads Downloads, library Library, checker Health, profile domain.ResourceProfile) *Server {
	return &Server{
		catalog:   catalog,
		downloads: downloads,
		library:   library,
		checker:   checker,
		profile:   profile,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// The timeout covers a synchronous catalog refresh; the event
		// stream lives outside it and stays open as long as the client.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))

			r.Get("/catalog", s.handleCatalog)
			r.Post("/catalog/refresh", s.handleRefresh)

			r.Get("/downloads", s.handleListDownloads)
			r.Post("/downloads", s.handleEnqueue)
			r.Post("/downloads/{id}/pause", s.transferAction(s.downloads.Pause))
			r.Post("/downloads/{id}/resume", s.transferAction(s.downloads.Resume))
			r.Post("/downloads/{id}/cancel", s.transferAction(s.downloads.Cancel))
			r.Post("/downloads/{id}/retry", s.transferAction(s.downloads.Retry))
			r.Delete("/downloads/{id}", s.handleDismiss)

			r.Get("/library", s.handleLibrary)
		})

		r.Get("/downloads/events", s.handleEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.checker.IsHealthy()
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"healthy": healthy,
		"checks":  s.checker.Statuses(),
		"profile": s.profile,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTransferTerminal),
		errors.Is(err, domain.ErrDestinationInUse):
		return http.StatusConflict
	}

	var fetchErr *domain.FetchError
	var refreshErr *domain.PartialRefreshError
	if errors.As(err, &fetchErr) || errors.As(err, &refreshErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
