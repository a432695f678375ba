// Package api provides HTTP router setup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/database"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg *config.Config, analyzer Analyzer, store database.Store, health HealthInfo) http.Handler {
	r := chi.NewRouter()

	handler := NewHandler(analyzer, store, health, cfg.Pipeline.MaxUploadMB)

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", handler.HealthCheck)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(store))
			r.Use(AuditMiddleware(store))
			r.Use(RateLimitMiddleware(cfg.RateLimits.RequestsPerMinute))

			// Analysis endpoints
			r.Post("/analyze/factcheck", handler.AnalyzeFactCheck)
			r.Post("/analyze/ai-detection", handler.AnalyzeAIDetection)

			// Stored reports
			r.Get("/reports", handler.ListReports)
			r.Get("/reports/{id}", handler.GetReport)

			// Audit logs
			r.Get("/audit", handler.GetAuditLogs)
		})

		// Admin routes (API key management)
		// In production, these should be protected differently
		r.Route("/admin", func(r chi.Router) {
			r.Post("/keys", handler.CreateAPIKey)
			r.Get("/keys", handler.ListAPIKeys)
			r.Delete("/keys/{id}", handler.DeleteAPIKey)
		})
	})

	return r
}
