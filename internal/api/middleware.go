package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/metrics"
	"github.com/clinicore/scheduling-service/internal/scheduling"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs requests and records the Prometheus HTTP metrics.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		requestID := GetRequestID(r.Context())

		metrics.RequestsTotal.WithLabelValues(r.Method, fmt.Sprintf("%dxx", wrapped.statusCode/100)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method).Observe(duration.Seconds())

		log.Printf(
			"method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration,
			requestID,
		)
	})
}

// PrincipalMiddleware extracts the authenticated principal forwarded by the
// gateway. Authentication itself happens upstream; a request without a
// principal never reaches the scheduling operations.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Principal-ID"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing_principal", "X-Principal-ID header is required")
			return
		}

		role := scheduling.Role(r.Header.Get("X-Principal-Role"))
		switch role {
		case scheduling.RolePatient, scheduling.RoleDoctor, scheduling.RoleStaff, scheduling.RoleAdmin:
		default:
			writeError(w, http.StatusUnauthorized, "invalid_role", "X-Principal-Role must be patient, doctor, staff, or admin")
			return
		}

		actor := scheduling.Actor{ID: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ActorFromContext returns the principal placed by PrincipalMiddleware.
func ActorFromContext(ctx context.Context) scheduling.Actor {
	if actor, ok := ctx.Value(actorKey).(scheduling.Actor); ok {
		return actor
	}
	return scheduling.Actor{}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
