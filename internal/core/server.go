// Package core provides the HTTP chassis for the AirWatch API. It builds a chi
// router and applies the cross-cutting concerns (panic recovery, logging,
// metrics, rate limiting, API key checks, error envelopes) before requests
// reach the domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"airwatch/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP API. Optional fields left nil
// disable the matching middleware.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	HealthProbes []HealthProbe
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler

	APIKeys        KeyVerifier
	RateLimitStore RateLimitStore
	AuthFailures   *FailureTracker

	// V1RouteRegistrars mount domain handlers under /v1. Populated by main
	// so that core never imports handler packages.
	V1RouteRegistrars []func(r chi.Router)

	router *chi.Mux
}

// NewServer creates a Server from configuration. API key checking, rate
// limiting and IP blocking are enabled according to cfg.Server. Routes are
// mounted separately by MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	if cfg.Server.APIKeyHash.IsSet() {
		v, err := NewBcryptVerifier(cfg.Server.APIKeyHash.Unmask())
		if err != nil {
			return nil, err
		}
		s.APIKeys = v
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		s.RateLimitStore = NewMemoryRateLimitStore()
	}
	if cfg.Server.AuthFailureLimit > 0 {
		s.AuthFailures = NewFailureTracker(cfg.Server.AuthFailureLimit, authFailureWindow)
	}

	return s, nil
}

// Handler returns the root handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HTTPServer returns an http.Server for addr with the API's timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
