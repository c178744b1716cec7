package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"airwatch/internal/config"
)

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockHealthProbe implements HealthProbe for testing.
type mockHealthProbe struct {
	name     string
	checkErr error
	delay    time.Duration
	panics   bool
	called   atomic.Bool
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	m.called.Store(true)
	if m.panics {
		panic("boom")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

func newTestServerForHealth(probes []HealthProbe) *Server {
	cfg := &config.Config{Environment: "local", Build: config.BuildInfo{Version: "1.2.3"}}
	srv, _ := NewServer(cfg, testLogger())
	srv.HealthProbes = probes
	return srv
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	db := &mockHealthProbe{name: "database"}
	redis := &mockHealthProbe{name: "redis"}
	srv := newTestServerForHealth([]HealthProbe{db, redis})

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", resp.Version)
	}
	for _, name := range []string{"database", "redis"} {
		if resp.Components[name].Status != "healthy" {
			t.Errorf("expected %s healthy, got %+v", name, resp.Components[name])
		}
	}
	if !db.called.Load() || !redis.called.Load() {
		t.Error("expected every probe to run")
	}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServerForHealth(nil)

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if resp := decodeHealth(t, rec); len(resp.Components) != 0 {
		t.Errorf("expected no components, got %v", resp.Components)
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	srv := newTestServerForHealth([]HealthProbe{
		&mockHealthProbe{name: "database", checkErr: errors.New("connection refused")},
		&mockHealthProbe{name: "redis"},
	})

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", resp.Status)
	}
	if got := resp.Components["database"]; got.Status != "unhealthy" || got.Message != "connection refused" {
		t.Errorf("unexpected database component: %+v", got)
	}
	if got := resp.Components["redis"]; got.Status != "healthy" {
		t.Errorf("unexpected redis component: %+v", got)
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newTestServerForHealth([]HealthProbe{&mockHealthProbe{name: "database", panics: true}})

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if got := decodeHealth(t, rec).Components["database"].Message; got != "probe panicked: boom" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	srv := newTestServerForHealth([]HealthProbe{&mockHealthProbe{name: "database", delay: time.Minute}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	start := time.Now()
	srv.HandleHealth(rec, req)

	if elapsed := time.Since(start); elapsed > healthCheckTimeout {
		t.Errorf("health check took %v", elapsed)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if got := decodeHealth(t, rec).Components["database"].Status; got != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", got)
	}
}
