package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/campusmind/appointment-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Professional schedule views
	r.Get("/professionals/{id}/slots", listAvailableSlotsHandler(cfg.Service))
	r.Get("/professionals/{id}/availability", rangeAvailabilityHandler(cfg.Service))
	r.Get("/professionals/{id}/appointments", listProfessionalAppointmentsHandler(cfg.Service))

	// Student views
	r.Get("/students/{id}/appointments", listStudentAppointmentsHandler(cfg.Service))
	r.Get("/students/{id}/slots", studentSlotsHandler(cfg.Service))

	// Appointment lifecycle
	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/approve", approveAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reject", rejectAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/student-approval", studentApprovalHandler(cfg.Service))
	r.Post("/appointments/{id}/proposal", proposalHandler(cfg.Service))
	r.Post("/appointments/{id}/schedule", scheduleHandler(cfg.Service))

	return r
}
