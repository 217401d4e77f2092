package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vetdesk/clinic-scheduling/internal/appointment"
	"github.com/vetdesk/clinic-scheduling/internal/directory"
	"github.com/vetdesk/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service  *appointment.Service
	Store    schedule.Store
	Clinics  directory.ClinicDirectory
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	h := NewHandlers(cfg.Service, cfg.Store, cfg.Clinics)

	// Booking endpoints
	r.Post("/appointments", h.createAppointment)
	r.Get("/appointments", h.listAppointments)
	r.Get("/appointments/{id}", h.getAppointment)
	r.Patch("/appointments/{id}", h.updateAppointment)
	r.Post("/appointments/{id}/status", h.updateStatus)
	r.Delete("/appointments/{id}", h.deleteAppointment)

	// Availability + clinic-admin schedule management
	r.Route("/hospitals/{hospitalID}", func(r chi.Router) {
		r.Get("/slots", h.getAvailableSlots)

		r.Post("/templates", h.createTemplate)
		r.Get("/templates", h.listTemplates)
		r.Put("/templates/{templateID}", h.updateTemplate)
		r.Delete("/templates/{templateID}", h.deleteTemplate)

		r.Post("/closures", h.createClosure)
		r.Get("/closures", h.listClosures)
		r.Delete("/closures/{closureID}", h.deleteClosure)
	})

	return r
}
