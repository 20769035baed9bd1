package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable. *pgxpool.Pool satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe endpoint.
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler builds the probe. db may be nil, in which case only
// process liveness is reported.
func NewHealthHandler(db HealthChecker) *HealthHandler { return &HealthHandler{db: db} }

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
