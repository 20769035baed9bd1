package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/ricirt/ping-queue/internal/api/middleware"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/service"
)

// WeblogHandler serves weblog registration and the "weblog changed" event.
type WeblogHandler struct {
	svc    *service.PingService
	logger *zap.Logger
}

func NewWeblogHandler(svc *service.PingService, logger *zap.Logger) *WeblogHandler {
	return &WeblogHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/weblogs
func (h *WeblogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWeblogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	weblog, err := h.svc.CreateWeblog(r.Context(), req)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("create weblog failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, weblog)
}

// AddAutoPing handles POST /api/v1/weblogs/{id}/autopings
func (h *WeblogHandler) AddAutoPing(w http.ResponseWriter, r *http.Request) {
	var req domain.AddAutoPingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.AddAutoPing(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QueuePings handles POST /api/v1/weblogs/{id}/pings. It queues one entry
// per auto-ping target; the entries are sent by the next pass.
func (h *WeblogHandler) QueuePings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.QueueWeblogPings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("queue weblog pings failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"queued": entries, "count": len(entries)})
}
