package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airwatch/internal/alerting"
	"airwatch/internal/core"
	"airwatch/internal/types"
)

// DefaultPushUserID is stored when a registration omits user_id.
const DefaultPushUserID = "anonymous"

// TokenRegistry is the push-token contract the handler needs.
type TokenRegistry interface {
	Register(ctx context.Context, token, userID string) error
	Remove(ctx context.Context, token string) (bool, error)
}

// RegisterTokenRequest is the body of POST /v1/push-tokens.
type RegisterTokenRequest struct {
	Token  string `json:"token" validate:"required,max=4096"`
	UserID string `json:"user_id" validate:"omitempty,max=128"`
}

// RegisterTokenResponse confirms a registration.
type RegisterTokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// TokenHandler manages the push tokens alerts are delivered to.
type TokenHandler struct {
	registry  TokenRegistry
	validator *core.Validator
	logger    *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(registry TokenRegistry, val *core.Validator, logger *slog.Logger) *TokenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &TokenHandler{registry: registry, validator: val, logger: logger}
}

// RegisterRoutes mounts the token endpoints behind requireKey.
func (h *TokenHandler) RegisterRoutes(r chi.Router, requireKey func(http.Handler) http.Handler) {
	r.With(requireKey).Post("/push-tokens", h.HandleRegister)
	r.With(requireKey).Delete("/push-tokens/{token}", h.HandleDelete)
}

// HandleRegister handles POST /v1/push-tokens. Registering a known token
// refreshes its user and keeps its creation time.
func (h *TokenHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req, types.ErrCodeValidationPushToken); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = DefaultPushUserID
	}

	if err := h.registry.Register(r.Context(), req.Token, req.UserID); err != nil {
		h.logger.ErrorContext(r.Context(), "push token registration failed",
			slog.String("token", alerting.TokenPrefix(req.Token)),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusCreated, RegisterTokenResponse{
		Token:  alerting.TokenPrefix(req.Token),
		UserID: req.UserID,
	})
}

// HandleDelete handles DELETE /v1/push-tokens/{token}.
func (h *TokenHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	removed, err := h.registry.Remove(r.Context(), token)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "push token removal failed",
			slog.String("token", alerting.TokenPrefix(token)),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}
	if !removed {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundPushToken, "push token not found", nil))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
