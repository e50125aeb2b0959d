package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

type RouterConfig struct {
	Availability *scheduling.AvailabilityService
	Slots        *scheduling.SlotService
	Bookings     *scheduling.BookingService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(PrincipalMiddleware)

		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Post("/availability", createAvailabilityHandler(cfg.Availability))
			r.Get("/availability", listAvailabilityHandler(cfg.Availability))
			r.Post("/slots/generate", generateSlotsHandler(cfg.Slots))
			r.Post("/slots/generate-dates", generateSlotsForDatesHandler(cfg.Slots))
			r.Get("/slots", listSlotsHandler(cfg.Slots))
		})

		r.Put("/availability/{id}", updateAvailabilityHandler(cfg.Availability))
		r.Delete("/availability/{id}", deleteAvailabilityHandler(cfg.Availability))

		r.Post("/slots/{id}/cancel", cancelSlotHandler(cfg.Slots))

		r.Post("/appointments", bookAppointmentHandler(cfg.Bookings))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Bookings))
		r.Post("/appointments/{id}/confirm", transitionHandler(cfg.Bookings, scheduling.StatusConfirmed))
		r.Post("/appointments/{id}/check-in", transitionHandler(cfg.Bookings, scheduling.StatusCheckedIn))
		r.Post("/appointments/{id}/start", transitionHandler(cfg.Bookings, scheduling.StatusInProgress))
		r.Post("/appointments/{id}/complete", transitionHandler(cfg.Bookings, scheduling.StatusCompleted))
		r.Post("/appointments/{id}/no-show", transitionHandler(cfg.Bookings, scheduling.StatusNoShow))

		r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Bookings))
	})

	return r
}
