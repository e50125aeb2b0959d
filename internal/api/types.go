package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

type CreateAvailabilityRequest struct {
	Weekday       int     `json:"weekday"`
	StartTime     string  `json:"start_time"` // "HH:MM"
	EndTime       string  `json:"end_time"`
	IsAvailable   *bool   `json:"is_available,omitempty"`
	ScheduleType  string  `json:"schedule_type,omitempty"` // regular (default), temporary, day_off
	EffectiveDate *string `json:"effective_date,omitempty"`
	Location      string  `json:"location,omitempty"`
	Department    string  `json:"department,omitempty"`
	Room          string  `json:"room,omitempty"`
	SlotMinutes   int     `json:"slot_duration_minutes"`
	MaxPatients   int     `json:"max_patients_per_slot"`
}

type AvailabilityResponse struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Weekday       int       `json:"weekday"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	IsAvailable   bool      `json:"is_available"`
	ScheduleType  string    `json:"schedule_type"`
	EffectiveDate *string   `json:"effective_date,omitempty"`
	Location      string    `json:"location,omitempty"`
	Department    string    `json:"department,omitempty"`
	Room          string    `json:"room,omitempty"`
	SlotMinutes   int       `json:"slot_duration_minutes"`
	MaxPatients   int       `json:"max_patients_per_slot"`
}

func toAvailabilityResponse(av *scheduling.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		ID:           av.ID,
		DoctorID:     av.DoctorID,
		Weekday:      int(av.Weekday),
		StartTime:    av.Start.String(),
		EndTime:      av.End.String(),
		IsAvailable:  av.IsAvailable,
		ScheduleType: string(av.ScheduleType),
		Location:     av.Location,
		Department:   av.Department,
		Room:         av.Room,
		SlotMinutes:  int(av.SlotDuration / time.Minute),
		MaxPatients:  av.MaxPatients,
	}
	if av.EffectiveDate != nil {
		d := av.EffectiveDate.Format("2006-01-02")
		resp.EffectiveDate = &d
	}
	return resp
}

type GenerateSlotsRequest struct {
	StartDate   string `json:"start_date"` // "2006-01-02"
	EndDate     string `json:"end_date"`
	SlotMinutes int    `json:"slot_duration_minutes,omitempty"` // 0 uses each window's own duration
	Strict      bool   `json:"strict,omitempty"`
}

type GenerateDatesRequest struct {
	Windows []struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	} `json:"windows"`
	SlotMinutes int  `json:"slot_duration_minutes"`
	MaxPatients int  `json:"max_patients,omitempty"`
	Strict      bool `json:"strict,omitempty"`
}

type GenerateSlotsResponse struct {
	Created int            `json:"created"`
	Slots   []SlotResponse `json:"slots"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	IsAvailable     bool      `json:"is_available"`
	Status          string    `json:"status"`
	MaxPatients     int       `json:"max_patients"`
	CurrentPatients int       `json:"current_patients"`
}

func toSlotResponse(s *scheduling.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		DoctorID:        s.DoctorID,
		Date:            s.Date.Format("2006-01-02"),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		IsAvailable:     s.IsAvailable,
		Status:          string(s.Status),
		MaxPatients:     s.MaxPatients,
		CurrentPatients: s.CurrentPatients,
	}
}

func toSlotResponses(slots []scheduling.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}

type BookAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	TimeSlotID string `json:"time_slot_id"`
	Reason     string `json:"reason,omitempty"`
	Priority   string `json:"priority,omitempty"` // routine (default) or urgent
}

type CancelAppointmentRequest struct {
	Notes string `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	NewTimeSlotID string `json:"new_time_slot_id"`
	Notes         string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	TimeSlotID uuid.UUID  `json:"time_slot_id"`
	Status     string     `json:"status"`
	Date       string     `json:"appointment_date"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Reason     string     `json:"reason,omitempty"`
	Priority   string     `json:"priority"`
	Notes      string     `json:"notes,omitempty"`
	FollowUpTo *uuid.UUID `json:"follow_up_to,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		DoctorID:   a.DoctorID,
		TimeSlotID: a.TimeSlotID,
		Status:     string(a.Status),
		Date:       a.Date.Format("2006-01-02"),
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Reason:     a.Reason,
		Priority:   string(a.Priority),
		Notes:      a.Notes,
		FollowUpTo: a.FollowUpTo,
	}
}

type ErrorResponse struct {
	Error     string      `json:"error"`
	Details   string      `json:"details,omitempty"`
	Conflicts []uuid.UUID `json:"conflicts,omitempty"`
}
