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

type SlotHandler struct {
	cfg     *config.Config
	service service.SlotService
}

func NewSlotHandler(cfg *config.Config, svc service.SlotService) *SlotHandler {
	return &SlotHandler{
		cfg:     cfg,
		service: svc,
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.GET("/api/v1/slots", h.ListMine)
	router.GET("/api/v1/slots/:id", h.GetByID)
	router.PATCH("/api/v1/slots/:id/status", h.SetStatus)
	router.DELETE("/api/v1/slots/:id", h.Delete)
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	var slot model.Slot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		_ = httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	created, err := h.service.Create(r.Context(), userID, &slot)
	if err != nil {
		h.logFailure(r, "create slot", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteCreated(w, created)
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	slot, err := h.service.GetByID(r.Context(), userID, params.ByName("id"))
	if err != nil {
		h.logFailure(r, "get slot", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteSuccess(w, slot)
}

func (h *SlotHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	slots, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.logFailure(r, "list slots", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteSuccess(w, slots)
}

func (h *SlotHandler) SetStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	var update model.SlotStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		_ = httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	slot, err := h.service.SetStatus(r.Context(), userID, params.ByName("id"), &update)
	if err != nil {
		h.logFailure(r, "update slot status", err)
		_ = httputil.WriteError(w, err)
		return
	}

	_ = httputil.WriteSuccess(w, slot)
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID := middleware.UserIDFromContext(r.Context())

	if err := h.service.Delete(r.Context(), userID, params.ByName("id")); err != nil {
		h.logFailure(r, "delete slot", err)
		_ = httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) logFailure(r *http.Request, operation string, err error) {
	appErr := apperrors.AsAppError(err)
	args := []any{
		"operation", operation,
		"path", r.URL.Path,
		"code", appErr.Code,
		"error", err,
	}
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.cfg.Log.Error("Slot operation failed", args...)
		return
	}
	h.cfg.Log.Debug("Slot operation rejected", args...)
}
