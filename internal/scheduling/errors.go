package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAvailabilityNotFound = errors.New("availability not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	ErrInvalidTimeRange    = errors.New("start time must be before end time")
	ErrInvalidWeekday      = errors.New("weekday must be between 0 and 6")
	ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")
	ErrInvalidCapacity     = errors.New("slot capacity must be at least 1")
	ErrInvalidPriority     = errors.New("priority must be routine or urgent")
	ErrHorizonExceeded     = errors.New("date range exceeds the generation horizon")

	ErrSlotAlreadyExists  = errors.New("a slot already exists at this time")
	ErrSlotNotAvailable   = errors.New("slot is not available")
	ErrSlotBeingBooked    = errors.New("slot is currently being booked, please retry")
	ErrSlotHasAppointment = errors.New("slot still has an active appointment")

	ErrNotPermitted       = errors.New("actor is not permitted to perform this operation")
	ErrSlotInPast         = errors.New("slot is in the past")
	ErrCancellationWindow = errors.New("appointment is inside the cancellation cutoff window")

	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// OverlapError reports which existing availability windows conflict with a
// candidate window.
type OverlapError struct {
	ConflictIDs []uuid.UUID
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("availability overlaps %d existing window(s)", len(e.ConflictIDs))
}
