package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ricirt/ping-queue/internal/api/handler"
	apimw "github.com/ricirt/ping-queue/internal/api/middleware"
	"github.com/ricirt/ping-queue/internal/service"
	"github.com/ricirt/ping-queue/internal/site"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route.
func NewRouter(
	svc *service.PingService,
	drainer handler.Drainer,
	resolver *site.Resolver,
	db handler.HealthChecker,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	th := handler.NewTargetHandler(svc, logger)
	wh := handler.NewWeblogHandler(svc, logger)
	qh := handler.NewQueueHandler(svc, drainer, logger)
	mh := handler.NewMetricsHandler(svc, drainer)
	hh := handler.NewHealthHandler(db)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Learn the site URL from API traffic only; probes and scrapes
		// usually address the pod directly.
		r.Use(resolver.Middleware)

		r.Get("/targets", th.List)
		r.Post("/targets", th.Create)

		r.Post("/weblogs", wh.Create)
		r.Post("/weblogs/{id}/autopings", wh.AddAutoPing)
		r.Post("/weblogs/{id}/pings", wh.QueuePings)

		r.Get("/queue", qh.List)
		r.Post("/queue", qh.Enqueue)
		r.Post("/queue/process", qh.Process)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
