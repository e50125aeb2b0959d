package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

func parseAvailabilityRequest(doctorID uuid.UUID, req CreateAvailabilityRequest) (*scheduling.Availability, string) {
	start, err := scheduling.ParseClock(req.StartTime)
	if err != nil {
		return nil, "start_time must be HH:MM"
	}
	end, err := scheduling.ParseClock(req.EndTime)
	if err != nil {
		return nil, "end_time must be HH:MM"
	}

	scheduleType := scheduling.ScheduleType(req.ScheduleType)
	if req.ScheduleType == "" {
		scheduleType = scheduling.ScheduleRegular
	}

	av := &scheduling.Availability{
		DoctorID:     doctorID,
		Weekday:      time.Weekday(req.Weekday),
		Start:        start,
		End:          end,
		IsAvailable:  true,
		ScheduleType: scheduleType,
		Location:     req.Location,
		Department:   req.Department,
		Room:         req.Room,
		SlotDuration: time.Duration(req.SlotMinutes) * time.Minute,
		MaxPatients:  req.MaxPatients,
	}
	if av.MaxPatients == 0 {
		av.MaxPatients = 1
	}
	if req.IsAvailable != nil {
		av.IsAvailable = *req.IsAvailable
	}
	if req.EffectiveDate != nil {
		d, err := time.Parse("2006-01-02", *req.EffectiveDate)
		if err != nil {
			return nil, "effective_date must be YYYY-MM-DD"
		}
		av.EffectiveDate = &d
	}
	return av, ""
}

func createAvailabilityHandler(svc *scheduling.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		var req CreateAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		av, problem := parseAvailabilityRequest(doctorID, req)
		if problem != "" {
			writeError(w, http.StatusBadRequest, "invalid_request_body", problem)
			return
		}

		created, err := svc.Create(r.Context(), ActorFromContext(r.Context()), av)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAvailabilityResponse(created))
	}
}

func updateAvailabilityHandler(svc *scheduling.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
			return
		}

		var req CreateAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		av, problem := parseAvailabilityRequest(uuid.Nil, req)
		if problem != "" {
			writeError(w, http.StatusBadRequest, "invalid_request_body", problem)
			return
		}
		av.ID = id

		updated, err := svc.Update(r.Context(), ActorFromContext(r.Context()), av)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(updated))
	}
}

func deleteAvailabilityHandler(svc *scheduling.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
			return
		}

		removed, err := svc.Delete(r.Context(), ActorFromContext(r.Context()), id, time.Now())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "slots_removed": removed})
	}
}

func listAvailabilityHandler(svc *scheduling.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		avs, err := svc.List(r.Context(), doctorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]AvailabilityResponse, 0, len(avs))
		for i := range avs {
			out = append(out, toAvailabilityResponse(&avs[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
