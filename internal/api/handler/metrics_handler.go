package handler

import (
	"net/http"

	"github.com/ricirt/ping-queue/internal/service"
)

// MetricsHandler serves a human-readable JSON snapshot of the queue.
// Raw Prometheus metrics are available at /metrics via promhttp.
type MetricsHandler struct {
	svc     *service.PingService
	drainer Drainer
}

func NewMetricsHandler(svc *service.PingService, drainer Drainer) *MetricsHandler {
	return &MetricsHandler{svc: svc, drainer: drainer}
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListQueue(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": len(entries),
		"last_pass":   h.drainer.LastPass(),
	})
}
