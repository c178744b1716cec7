package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the whole probe run. Probes still running when it
// expires are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (database, cache).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise. Mounted at GET /health without authentication.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Version: s.version()}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	var (
		mu      sync.Mutex
		results = make([]error, len(probes))
		done    = make([]bool, len(probes))
		wg      sync.WaitGroup
	)

	for i, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runProbe(ctx, probe)
			mu.Lock()
			results[i], done[i] = err, true
			mu.Unlock()
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	resp.Components = make(map[string]componentStatus, len(probes))
	for i, probe := range probes {
		switch {
		case !done[i]:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case results[i] != nil:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: results[i].Error()}
		default:
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}

func (s *Server) version() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Build.Version
}
