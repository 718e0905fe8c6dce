package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/service"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"
	httputil "github.com/pranaytiwariii/SlotSwapper/pkg/http"
	"github.com/pranaytiwariii/SlotSwapper/pkg/middleware"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SwapHandler struct {
	cfg     *config.Config
	service service.SwapService
}

func NewSwapHandler(cfg *config.Config, svc service.SwapService) *SwapHandler {
	return &SwapHandler{
		cfg:     cfg,
		service: svc,
	}
}

func (h *SwapHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/swap-requests", h.Propose)
	router.DELETE("/api/v1/swap-requests/:id", h.Cancel)
	router.GET("/api/v1/swap-requests/pending", h.ListPending)
	router.POST("/api/v1/swap-responses", h.Respond)
	router.GET("/api/v1/swappable-slots", h.ListSwappable)
}

func (h *SwapHandler) Propose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	var proposal model.SwapProposal
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		_ = httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	request, err := h.service.Propose(r.Context(), userID, &proposal)
	if err != nil {
		h.logFailure(r, "propose swap", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteCreated(w, request)
}

func (h *SwapHandler) Respond(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	var decision model.SwapDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		_ = httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	request, err := h.service.Respond(r.Context(), userID, &decision)
	if err != nil {
		h.logFailure(r, "respond to swap", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteSuccess(w, request)
}

func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())
	requestID := params.ByName("id")

	if err := h.service.Cancel(r.Context(), userID, requestID); err != nil {
		h.logFailure(r, "cancel swap", err)
		_ = httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SwapHandler) ListPending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	pending, err := h.service.ListPending(r.Context(), userID)
	if err != nil {
		h.logFailure(r, "list pending swaps", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteSuccess(w, pending)
}

func (h *SwapHandler) ListSwappable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		_ = httputil.WriteError(w, err)
		return
	}

	slots, total, err := h.service.ListSwappable(r.Context(), userID, limit, offset)
	if err != nil {
		h.logFailure(r, "list swappable slots", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WritePaginated(w, slots, total, limit, offset)
}

// logFailure logs at a severity matching the outcome: integrity and
// internal failures are errors, everything else is expected API traffic.
func (h *SwapHandler) logFailure(r *http.Request, operation string, err error) {
	appErr := apperrors.AsAppError(err)
	args := []any{
		"operation", operation,
		"path", r.URL.Path,
		"code", appErr.Code,
		"error", err,
	}
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.cfg.Log.Error("Swap operation failed", args...)
		return
	}
	h.cfg.Log.Debug("Swap operation rejected", args...)
}
