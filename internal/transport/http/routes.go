package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "recipe-ingest-service/docs"
	"recipe-ingest-service/internal/metrics"
)

func Routes(h *Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID so the id is in the context
	r.Use(RequestLogger(slog.Default().With("component", "http"), m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/recipes", func(r chi.Router) {
		r.Post("/ingest", h.IngestRecipe)
		r.Get("/search", h.SearchRecipes)
		r.Get("/{id}", h.GetRecipe)
	})
	r.Get("/jobs/{id}", h.GetJob)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
