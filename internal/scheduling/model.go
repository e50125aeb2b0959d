package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleType string

const (
	ScheduleRegular   ScheduleType = "regular"
	ScheduleTemporary ScheduleType = "temporary"
	ScheduleDayOff    ScheduleType = "day_off"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCheckedIn   AppointmentStatus = "checked_in"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// Terminal reports whether no further transition can leave the status.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityRoutine Priority = "routine"
	PriorityUrgent  Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityRoutine || p == PriorityUrgent
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated principal behind a call. Identity is established
// upstream by the gateway; this package only trusts what it is handed.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// CanOverrideCutoff reports whether the actor may cancel inside the
// cancellation cutoff window.
func (a Actor) CanOverrideCutoff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Availability is one recurring weekly work window for a doctor. DAY_OFF and
// TEMPORARY rows carry an EffectiveDate and supersede the recurring pattern
// for that date; they never modify the REGULAR rows themselves.
type Availability struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Weekday       time.Weekday
	Start         ClockTime
	End           ClockTime
	IsAvailable   bool
	ScheduleType  ScheduleType
	EffectiveDate *time.Time
	Location      string
	Department    string
	Room          string
	SlotDuration  time.Duration
	MaxPatients   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TimeSlot is a concrete, dated bookable unit derived from an Availability.
// Once booked it is never physically deleted; doctor unavailability flips it
// to cancelled instead.
type TimeSlot struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	AvailabilityID  *uuid.UUID
	Date            time.Time
	StartTime       time.Time
	EndTime         time.Time
	Status          SlotStatus
	IsAvailable     bool
	Location        string
	Department      string
	Room            string
	MaxPatients     int
	CurrentPatients int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	TimeSlotID uuid.UUID
	Date       time.Time
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	Reason     string
	Priority   Priority
	Notes      string
	CreatedBy  uuid.UUID
	FollowUpTo *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DateWindow is an explicit one-off generation window for a specific date,
// used for clinic hours outside the recurring pattern.
type DateWindow struct {
	Date  time.Time
	Start ClockTime
	End   ClockTime
}
