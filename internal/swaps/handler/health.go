package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	httputil "github.com/pranaytiwariii/SlotSwapper/pkg/http"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health reports process liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready additionally verifies the database connection.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.cfg.Client.Mongo.Ping(ctx, readpref.Primary()); err != nil {
		_ = httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}

	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
