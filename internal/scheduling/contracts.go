package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notifier hands appointment events to the notification collaborator.
// Delivery is fire-and-forget: implementations must not fail the calling
// operation.
type Notifier interface {
	AppointmentEvent(ctx context.Context, appointmentID uuid.UUID, eventType string)
}

type NoopNotifier struct{}

func (NoopNotifier) AppointmentEvent(context.Context, uuid.UUID, string) {}

// VisitRecorder receives check-in and visit-start timestamps for the patient
// visit record kept outside this core. Errors are logged by the caller, never
// surfaced.
type VisitRecorder interface {
	RecordCheckIn(ctx context.Context, appointmentID uuid.UUID, at time.Time) error
	RecordVisitStart(ctx context.Context, appointmentID uuid.UUID, at time.Time) error
}

type NoopVisitRecorder struct{}

func (NoopVisitRecorder) RecordCheckIn(context.Context, uuid.UUID, time.Time) error    { return nil }
func (NoopVisitRecorder) RecordVisitStart(context.Context, uuid.UUID, time.Time) error { return nil }

// SlotCache caches day-view slot listings. Misses and cache errors fall
// through to the repository; writers invalidate after any slot mutation.
type SlotCache interface {
	GetDaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, bool)
	SetDaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []TimeSlot)
	InvalidateDay(ctx context.Context, doctorID uuid.UUID, date time.Time)
}

type NoopSlotCache struct{}

func (NoopSlotCache) GetDaySlots(context.Context, uuid.UUID, time.Time) ([]TimeSlot, bool) {
	return nil, false
}
func (NoopSlotCache) SetDaySlots(context.Context, uuid.UUID, time.Time, []TimeSlot) {}
func (NoopSlotCache) InvalidateDay(context.Context, uuid.UUID, time.Time)           {}
