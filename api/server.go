/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/groups/*        Group and schedule management
  /api/holidays/*      Global holiday calendar
  /api/overrides/*     Override deletion
  /api/prices/*        Price entry deletion
  /api/enrollments/*   Memberships, financials, ledgers
  /api/billing/*       Monthly billing batch
  /api/dashboard/*     Aggregate statistics

SECURITY NOTE:
  No authentication middleware. Deploy behind a reverse proxy that
  handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Group and schedule routes
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Get("/{id}", h.GetGroup)
			r.Put("/{id}", h.UpdateGroup)
			r.Post("/{id}/archive", h.ArchiveGroup)
			r.Post("/{id}/restore", h.RestoreGroup)
			r.Get("/{id}/lesson-schedule", h.GetLessonSchedule)
			r.Get("/{id}/schedule-details", h.GetScheduleDetails)
			r.Get("/{id}/overrides", h.ListOverrides)
			r.Post("/{id}/overrides", h.CreateOverride)
			r.Get("/{id}/prices", h.ListPrices)
			r.Post("/{id}/prices", h.CreatePrice)
			r.Get("/{id}/enrollments", h.ListEnrollments)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Override and price deletion by own id
		r.Delete("/overrides/{id}", h.DeleteOverride)
		r.Delete("/prices/{id}", h.DeletePrice)

		// Enrollment routes
		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/", h.CreateEnrollment)
			r.Get("/{id}", h.GetEnrollment)
			r.Post("/{id}/archive", h.ArchiveEnrollment)
			r.Post("/{id}/restore", h.RestoreEnrollment)
			r.Get("/{id}/transactions", h.ListTransactions)
			r.Post("/{id}/transactions", h.CreateTransaction)
		})

		// Billing routes
		r.Route("/billing", func(r chi.Router) {
			r.Post("/run", h.RunBilling)
		})

		// Dashboard routes
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", h.GetDashboardStats)
		})
	})

	return r
}
