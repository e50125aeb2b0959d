package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_http_requests_total",
			Help: "HTTP requests handled, by method and status class",
		},
		[]string{"method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduling_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	SlotsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduling_slots_generated_total",
			Help: "Time slots emitted by the generator",
		},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_bookings_total",
			Help: "Booking attempts by outcome (booked, conflict, rejected, error)",
		},
		[]string{"outcome"},
	)

	AppointmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduling_appointment_transitions_total",
			Help: "Appointment status transitions by target status",
		},
		[]string{"to"},
	)
)
