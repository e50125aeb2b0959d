package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the services.
// WithinTx runs fn against a transactional view; any error from fn rolls the
// whole transaction back.
type Repository interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateAvailability(ctx context.Context, av *Availability) error
	UpdateAvailability(ctx context.Context, av *Availability) error
	DeleteAvailability(ctx context.Context, id uuid.UUID) error
	GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	ListAvailabilities(ctx context.Context, doctorID uuid.UUID) ([]Availability, error)
	// ListRegularForWeekday returns REGULAR windows for the doctor/weekday pair,
	// including unavailable ones so overlap checks see the full picture.
	ListRegularForWeekday(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]Availability, error)
	// ListTemporaryForDate returns TEMPORARY windows whose effective date is
	// exactly date. When any exist they supersede the recurring pattern there.
	ListTemporaryForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Availability, error)
	HasDayOff(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error)

	CreateSlots(ctx context.Context, slots []TimeSlot) error
	SlotExists(ctx context.Context, doctorID uuid.UUID, date time.Time, start time.Time) (bool, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	ListSlotsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error)
	// ClaimSlot atomically increments current_patients while the slot is
	// available and under capacity; it is the serialization point for
	// concurrent bookings. A full, cancelled, or already-booked slot returns
	// ErrSlotNotAvailable.
	ClaimSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// ReleaseSlot decrements current_patients and reopens a booked slot.
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	CancelSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// DeleteFutureUnbookedSlots removes slots derived from the availability
	// that start at or after from and have no bookings. Booked slots stay.
	DeleteFutureUnbookedSlots(ctx context.Context, availabilityID uuid.UUID, from time.Time) (int64, error)

	CreateAppointment(ctx context.Context, appt *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is a conditional move: it only succeeds when the
	// row still holds status from. A lost race returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	SetAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) error
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	// FindOverdueConfirmed returns confirmed or checked-in appointments whose
	// end time passed before cutoff, for the no-show sweep.
	FindOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error)
	ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
