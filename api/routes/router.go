package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/engagement-dashboard/api/controllers"
	"github.com/angelmondragon/engagement-dashboard/api/middleware"
	"github.com/angelmondragon/engagement-dashboard/api/responses"
	"github.com/angelmondragon/engagement-dashboard/pkg/config"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
	"github.com/angelmondragon/engagement-dashboard/pkg/redis"
)

// NewRouter wires the dashboard REST surface. limiter may be nil when redis is not configured;
// gatherer may be nil to skip /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	svc controllers.EngagementService,
	limiter redis.RateLimiter,
	checks map[string]controllers.Pinger,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	uploadPolicy := middleware.NewRateLimitPolicy(
		"upload",
		cfg.UploadRateLimit.Window,
		cfg.UploadRateLimit.Limit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", controllers.Health(time.Now))

		r.Route("/engagement", func(r chi.Router) {
			r.Get("/", controllers.ListEngagements(svc, cfg.Dashboard.DefaultLimit, logg))
			r.With(middleware.RateLimit(uploadPolicy, limiter, logg)).
				Post("/upload", controllers.UploadEngagements(svc, cfg.Data.MaxUploadBytes(), logg))
			r.Post("/clear-uploaded", controllers.ClearUploaded(svc))
			r.Get("/{id}/drill-down", controllers.DrillDown(svc, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", controllers.AnalyticsSummary(svc))
			r.Get("/segments", controllers.SegmentAnalytics(svc, logg))
		})

		r.Get("/export/csv", controllers.ExportCSV(svc, logg))
	})

	return r
}
