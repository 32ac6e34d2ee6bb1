// Package api exposes the summary pipeline and the summary and prompt stores
// over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router. frontendURL is the only
// origin allowed by CORS; "*" allows any.
func NewRouter(h *Handler, frontendURL string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	origins := []string{frontendURL}
	if frontendURL == "" {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: origins[0] != "*",
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", h.ListChannels)
		r.Get("/channels/{channelID}/threads", h.ListThreads)
		r.Get("/threads/{threadID}/messages", h.GetMessages)
		r.Post("/threads/{threadID}/summary", h.SummarizeThread)

		r.Post("/summaries", h.SaveSummary)
		r.Get("/summaries", h.ListSummaries)
		r.Get("/summaries/channel/{channelID}", h.ListSummariesByChannel)
		r.Get("/summaries/thread/{threadID}", h.GetSummaryByThread)
		r.Get("/summaries/category/{category}", h.ListSummariesByCategory)
		r.Get("/summaries/search/{query}", h.SearchSummaries)
		r.Get("/summaries/{id}", h.GetSummary)
		r.Delete("/summaries/{id}", h.DeleteSummary)

		r.Get("/config/prompt", h.GetPrompt)
		r.Post("/config/prompt", h.SavePrompt)
		r.Delete("/config/prompt", h.DeletePrompt)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.Error(w, http.StatusNotFound, "Route not found")
	})

	return r
}
