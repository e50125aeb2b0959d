package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the scheduling error taxonomy onto HTTP statuses.
// Conflict outcomes (overlaps, lost booking races) are expected control flow
// and answered without server-side error logging.
func writeDomainError(w http.ResponseWriter, err error) {
	var overlap *scheduling.OverlapError
	if errors.As(err, &overlap) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "availability_overlap",
			Details:   overlap.Error(),
			Conflicts: overlap.ConflictIDs,
		})
		return
	}

	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAvailabilityNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.Is(err, scheduling.ErrInvalidTimeRange),
		errors.Is(err, scheduling.ErrInvalidWeekday),
		errors.Is(err, scheduling.ErrInvalidSlotDuration),
		errors.Is(err, scheduling.ErrInvalidCapacity),
		errors.Is(err, scheduling.ErrInvalidPriority),
		errors.Is(err, scheduling.ErrHorizonExceeded):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, scheduling.ErrSlotAlreadyExists):
		writeError(w, http.StatusConflict, "slot_already_exists", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, scheduling.ErrSlotHasAppointment):
		writeError(w, http.StatusConflict, "slot_has_appointment", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")

	case errors.Is(err, scheduling.ErrSlotInPast):
		writeError(w, http.StatusUnprocessableEntity, "slot_in_past", err.Error())
	case errors.Is(err, scheduling.ErrCancellationWindow):
		writeError(w, http.StatusUnprocessableEntity, "cancellation_window", err.Error())
	case errors.Is(err, scheduling.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "not_permitted", err.Error())

	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
