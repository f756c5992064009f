package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/cadence/internal/metrics"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(m))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)
		if m != nil {
			r.Method("GET", "/metrics", m.Handler())
		}

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/items/today", h.TodayItems)
			r.Get("/items/upcoming", h.UpcomingItems)
			r.Get("/items/habits", h.ActiveHabits)
			r.Get("/items/attention", h.NeedsAttention)
			r.Get("/items/snapshot", h.Snapshot)
			r.Post("/items", h.AddItem)
			r.Get("/items/{id}", h.GetItem)
			r.Put("/items/{id}", h.UpdateItem)
			r.Put("/items/{id}/schedule", h.UpdateSchedule)
			r.Delete("/items/{id}", h.RemoveItem)
			r.Post("/items/{id}/complete", h.CompleteItem)
			r.Get("/items/{id}/streak", h.GetStreak)
			r.Get("/items/{id}/progress", h.GetProgress)

			r.Post("/goals/generate", h.Generate)
			r.Get("/goals/{goalId}/items", h.GoalItems)
			r.Post("/goals/{goalId}/criteria", h.UpdateCriteria)

			r.Post("/admin/regenerate", h.Regenerate)
			r.Delete("/admin/items", h.ClearItems)
		})
	})

	return r
}
