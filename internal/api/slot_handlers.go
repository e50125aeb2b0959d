package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

func generateSlotsHandler(svc *scheduling.SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "start_date must be YYYY-MM-DD")
			return
		}
		endDate, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "end_date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.GenerateFromAvailability(r.Context(), doctorID, startDate, endDate,
			time.Duration(req.SlotMinutes)*time.Minute, req.Strict)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{
			Created: len(slots),
			Slots:   toSlotResponses(slots),
		})
	}
}

func generateSlotsForDatesHandler(svc *scheduling.SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		var req GenerateDatesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		windows := make([]scheduling.DateWindow, 0, len(req.Windows))
		for _, win := range req.Windows {
			date, err := time.Parse("2006-01-02", win.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "window date must be YYYY-MM-DD")
				return
			}
			start, err := scheduling.ParseClock(win.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "window start_time must be HH:MM")
				return
			}
			end, err := scheduling.ParseClock(win.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "window end_time must be HH:MM")
				return
			}
			windows = append(windows, scheduling.DateWindow{Date: date, Start: start, End: end})
		}

		maxPatients := req.MaxPatients
		if maxPatients == 0 {
			maxPatients = 1
		}

		slots, err := svc.GenerateFromSpecificDates(r.Context(), doctorID, windows,
			time.Duration(req.SlotMinutes)*time.Minute, maxPatients, req.Strict)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{
			Created: len(slots),
			Slots:   toSlotResponses(slots),
		})
	}
}

func listSlotsHandler(svc *scheduling.SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListForDay(r.Context(), doctorID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func cancelSlotHandler(svc *scheduling.SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := svc.CancelSlot(r.Context(), ActorFromContext(r.Context()), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}
