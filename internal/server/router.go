package server

import (
	"net/http"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/api/handlers"
	"github.com/clio-labs/chronotex/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	SearchHandler   *handlers.SearchHandler
	AnalyzeHandler  *handlers.AnalyzeHandler
	KeywordHandler  *handlers.KeywordHandler
	ExportHandler   *handlers.ExportHandler
	SettingsHandler *handlers.SettingsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Post("/standard", cfg.SearchHandler.Standard)
			r.Post("/llm-assisted", cfg.SearchHandler.LLMAssisted)
			r.Post("/analyze", cfg.AnalyzeHandler.Analyze)
		})

		r.Get("/keywords/expand", cfg.KeywordHandler.Expand)

		r.Route("/export", func(r chi.Router) {
			r.Post("/", cfg.ExportHandler.Create)
			r.Get("/{id}", cfg.ExportHandler.Get)
			r.Get("/{id}/csv", cfg.ExportHandler.CSV)
		})

		r.Get("/config", cfg.SettingsHandler.Get)
	})

	return r
}
