package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airwatch/internal/core"
	"airwatch/internal/ingest"
	"airwatch/internal/types"
)

// ReadingIngester stores decoded sensor payloads.
type ReadingIngester interface {
	Ingest(ctx context.Context, payloads []ingest.Payload) (ingest.Result, error)
}

// IngestResponse summarizes a POST /v1/readings call.
type IngestResponse struct {
	Accepted int                `json:"accepted"`
	Rejected []ingest.Rejection `json:"rejected,omitempty"`
}

// ReadingHandler accepts readings pushed over HTTP by gateways that cannot
// reach the ingest queue.
type ReadingHandler struct {
	ingester ReadingIngester
	logger   *slog.Logger
}

// NewReadingHandler creates a ReadingHandler.
func NewReadingHandler(ingester ReadingIngester, logger *slog.Logger) *ReadingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingHandler{ingester: ingester, logger: logger}
}

// RegisterRoutes mounts the ingest endpoint behind requireKey.
func (h *ReadingHandler) RegisterRoutes(r chi.Router, requireKey func(http.Handler) http.Handler) {
	r.With(requireKey).Post("/readings", h.HandleIngest)
}

// HandleIngest handles POST /v1/readings. The body is one reading or an
// array of readings; invalid entries are reported without failing the
// valid ones.
func (h *ReadingHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := core.ReadBody(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	payloads, err := ingest.Decode(body)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	res, err := h.ingester.Ingest(r.Context(), payloads)
	if err != nil {
		if errorStatus(err) >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "reading ingest failed",
				slog.Int("payloads", len(payloads)),
				slog.String("error", err.Error()),
			)
		}
		core.Error(w, r, err)
		return
	}

	status := http.StatusCreated
	if len(res.Rejected) > 0 {
		status = http.StatusMultiStatus
	}
	core.Data(w, r, status, IngestResponse{Accepted: len(res.Accepted), Rejected: res.Rejected})
}

// errorStatus returns the HTTP status core.Error would write for err.
func errorStatus(err error) int {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
