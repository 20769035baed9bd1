package handler

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	apimw "github.com/ricirt/ping-queue/internal/api/middleware"
	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/service"
	"github.com/ricirt/ping-queue/internal/worker"
)

// Drainer is the part of *worker.Drainer the HTTP layer needs.
type Drainer interface {
	RunPass(ctx context.Context)
	LastPass() *worker.PassSummary
}

// QueueHandler serves queue inspection and manual passes.
type QueueHandler struct {
	svc     *service.PingService
	drainer Drainer
	logger  *zap.Logger

	pending atomic.Bool
}

func NewQueueHandler(svc *service.PingService, drainer Drainer, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, drainer: drainer, logger: logger}
}

// List handles GET /api/v1/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListQueue(r.Context())
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Error("list queue failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": entries, "total": len(entries)})
}

// Enqueue handles POST /api/v1/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.QueuePingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.svc.QueuePing(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// Process handles POST /api/v1/queue/process. The pass runs in the
// background, after any pass already in progress, so a slow queue never
// outlives the server write timeout. Requests made while a manual pass is
// still pending are coalesced into it. Clients poll GET /api/v1/metrics for
// the outcome.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	log := apimw.Logger(r.Context(), h.logger)
	if h.pending.CompareAndSwap(false, true) {
		log.Info("manual ping queue pass requested")
		ctx := context.WithoutCancel(r.Context())
		go func() {
			defer h.pending.Store(false)
			h.drainer.RunPass(ctx)
		}()
	} else {
		log.Info("manual ping queue pass already pending")
	}
	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":    "accepted",
		"last_pass": h.drainer.LastPass(),
	})
}
