// Package handlers contains the HTTP handlers of the AirWatch API. Each
// handler depends on a locally declared service interface and mounts its
// routes through RegisterRoutes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"airwatch/internal/airquality"
	"airwatch/internal/aqi"
	"airwatch/internal/core"
	"airwatch/internal/types"
)

// AirQualityService is the read-path contract the handler needs.
type AirQualityService interface {
	CurrentStatus(ctx context.Context, nodeID string) (*airquality.Status, error)
	Forecast(ctx context.Context, nodeID string, hours int) (*airquality.Forecast, error)
	Anomalies(ctx context.Context, nodeID string, hours int) (*airquality.AnomalyReport, error)
	History(ctx context.Context, nodeID string, hours int) (*airquality.History, error)
	Compare(ctx context.Context, hours int) (*airquality.Comparison, error)
	Suggestions(ctx context.Context, nodeID string) (*aqi.TierInfo, error)
	Standards() airquality.StandardsInfo
	Nodes(ctx context.Context) ([]airquality.NodeInfo, error)
}

// AirQualityHandler serves node status, history, forecasts and reference
// data.
type AirQualityHandler struct {
	service AirQualityService
	logger  *slog.Logger
}

// NewAirQualityHandler creates an AirQualityHandler.
func NewAirQualityHandler(svc AirQualityService, logger *slog.Logger) *AirQualityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AirQualityHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the read endpoints. All of them are public.
func (h *AirQualityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/nodes", h.HandleListNodes)
	r.Route("/nodes/{nodeID}", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/suggestions", h.HandleSuggestions)
		r.Get("/history", h.HandleHistory)
		r.Get("/forecast", h.HandleForecast)
		r.Get("/anomalies", h.HandleAnomalies)
	})
	r.Get("/compare", h.HandleCompare)
	r.Get("/standards", h.HandleStandards)
}

// HandleListNodes handles GET /v1/nodes.
func (h *AirQualityHandler) HandleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Nodes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, nodes)
}

// HandleStatus handles GET /v1/nodes/{nodeID}/status.
func (h *AirQualityHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentStatus(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, status)
}

// HandleSuggestions handles GET /v1/nodes/{nodeID}/suggestions.
func (h *AirQualityHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Suggestions(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, info)
}

// HandleHistory handles GET /v1/nodes/{nodeID}/history?hours=N.
func (h *AirQualityHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	history, err := h.service.History(r.Context(), chi.URLParam(r, "nodeID"), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, history)
}

// HandleForecast handles GET /v1/nodes/{nodeID}/forecast?hours=N.
func (h *AirQualityHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	forecast, err := h.service.Forecast(r.Context(), chi.URLParam(r, "nodeID"), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	core.Data(w, r, http.StatusOK, forecast)
}

// HandleAnomalies handles GET /v1/nodes/{nodeID}/anomalies?hours=N.
func (h *AirQualityHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	report, err := h.service.Anomalies(r.Context(), chi.URLParam(r, "nodeID"), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, report)
}

// HandleCompare handles GET /v1/compare?hours=N.
func (h *AirQualityHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	cmp, err := h.service.Compare(r.Context(), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, cmp)
}

// HandleStandards handles GET /v1/standards.
func (h *AirQualityHandler) HandleStandards(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	core.Data(w, r, http.StatusOK, h.service.Standards())
}

// fail logs server-side failures before writing the error envelope. Client
// errors are already covered by the request log.
func (h *AirQualityHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := errorStatus(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "air quality query failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	core.Error(w, r, err)
}

// parseHours reads the optional hours query parameter. Range checks are
// left to the service.
func parseHours(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return airquality.DefaultQueryHours, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidHours,
			"hours must be an integer", err,
			map[string]any{"got": raw})
	}
	return hours, nil
}
