package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/ricirt/ping-queue/internal/api/middleware"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/service"
)

// TargetHandler serves the ping target endpoints.
type TargetHandler struct {
	svc    *service.PingService
	logger *zap.Logger
}

func NewTargetHandler(svc *service.PingService, logger *zap.Logger) *TargetHandler {
	return &TargetHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/targets
func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePingTargetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.svc.CreateTarget(r.Context(), req)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("create ping target failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// List handles GET /api/v1/targets
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	targets, err := h.svc.ListTargets(r.Context())
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Error("list ping targets failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": targets, "total": len(targets)})
}
