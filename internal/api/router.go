package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/PipeSelect/internal/advisor"
	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
	"github.com/MikeSquared-Agency/PipeSelect/internal/config"
	"github.com/MikeSquared-Agency/PipeSelect/internal/events"
)

// NewRouter wires the API. ev and adv may be nil: rankings then run without
// notifications and cost suggestions answer 503.
func NewRouter(p catalog.Provider, ev events.Client, adv advisor.Client, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	materials := NewCatalogHandler(p)
	rankings := NewRankingsHandler(p, ev, cfg.Ranking, logger)
	advice := NewAdviceHandler(p, adv, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/materials", materials.Materials)
		r.Get("/criteria", materials.Criteria)

		r.Post("/rankings", rankings.Create)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.Advisor.RateLimitPerMinute))
			r.Post("/materials/{name}/cost-suggestion", advice.Suggest)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
