package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brunobiangulo/litassist"
)

// newRouter wires the API routes. Middleware chain:
// request id -> recovery -> cors -> logging -> (auth) -> handler.
func newRouter(a litassist.Assistant, cfg litassist.Config) http.Handler {
	h := newHandler(a, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(logMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(cfg.AuthToken))
			r.Post("/analyze", h.handleAnalyze)
			r.Post("/download/{format}", h.handleDownload)
			r.Get("/analyses", h.handleListAnalyses)
			r.Get("/analyses/{id}", h.handleGetAnalysis)
			r.Delete("/analyses/{id}", h.handleDeleteAnalysis)
		})
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return r
}
