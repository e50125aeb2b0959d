package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/config"
	"github.com/clinicore/scheduling-service/internal/metrics"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted     = "APPOINTMENT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

var eventForStatus = map[AppointmentStatus]string{
	StatusConfirmed:   EventAppointmentConfirmed,
	StatusCheckedIn:   EventAppointmentCheckedIn,
	StatusInProgress:  EventAppointmentStarted,
	StatusCompleted:   EventAppointmentCompleted,
	StatusCancelled:   EventAppointmentCancelled,
	StatusNoShow:      EventAppointmentNoShow,
	StatusRescheduled: EventAppointmentRescheduled,
}

// cancellableStatuses are the states Cancel accepts.
var cancellableStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusCheckedIn}

// BookingService claims slots on behalf of patients and is the sole mutator
// of appointment status. The slot-capacity check-and-increment in the
// repository is the serialization point for concurrent bookings; the
// distributed lock around it only keeps losing bookers from hammering the
// same row.
type BookingService struct {
	repo     Repository
	locker   SlotLocker
	cache    SlotCache
	notifier Notifier
	visits   VisitRecorder
	cfg      config.Config
	now      func() time.Time
}

func NewBookingService(repo Repository, locker SlotLocker, cache SlotCache, notifier Notifier, visits VisitRecorder, cfg config.Config) *BookingService {
	if cache == nil {
		cache = NoopSlotCache{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if visits == nil {
		visits = NoopVisitRecorder{}
	}
	return &BookingService{
		repo:     repo,
		locker:   locker,
		cache:    cache,
		notifier: notifier,
		visits:   visits,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Book claims an available slot for a patient. Exactly one of several
// concurrent calls against the last unit of slot capacity succeeds; the rest
// get ErrSlotNotAvailable. Losing a booking race is normal control flow, not
// a system error.
func (s *BookingService) Book(ctx context.Context, actor Actor, patientID, slotID uuid.UUID, reason string, priority Priority) (*Appointment, error) {
	if priority == "" {
		priority = PriorityRoutine
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidPriority, priority)
	}
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if !slot.StartTime.After(s.now()) {
		metrics.BookingsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrSlotInPast
	}
	if slot.Status != SlotAvailable {
		metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		return nil, ErrSlotNotAvailable
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(r Repository) error {
			claimed, err := r.ClaimSlot(lockCtx, slotID)
			if err != nil {
				return err
			}

			appt := &Appointment{
				ID:         uuid.New(),
				PatientID:  patientID,
				DoctorID:   claimed.DoctorID,
				TimeSlotID: claimed.ID,
				Date:       claimed.Date,
				StartTime:  claimed.StartTime,
				EndTime:    claimed.EndTime,
				Status:     s.initialStatus(),
				Reason:     reason,
				Priority:   priority,
				CreatedBy:  actor.ID,
			}
			if err := r.CreateAppointment(lockCtx, appt); err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			s.logEvent(lockCtx, r, appt.ID, EventAppointmentBooked, map[string]any{
				"slot_id":    slotID.String(),
				"patient_id": patientID.String(),
				"status":     string(appt.Status),
			})
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrSlotNotAvailable) {
			metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.BookingsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.BookingsTotal.WithLabelValues("booked").Inc()
	s.cache.InvalidateDay(ctx, slot.DoctorID, slot.Date)
	s.notifier.AppointmentEvent(ctx, created.ID, EventAppointmentBooked)
	return created, nil
}

func (s *BookingService) initialStatus() AppointmentStatus {
	if s.cfg.AutoConfirm {
		return StatusConfirmed
	}
	return StatusPending
}

// Cancel closes an appointment and always frees its slot capacity for
// rebooking. Patients are held to the cancellation cutoff; staff and admins
// may override it.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, appointmentID uuid.UUID, notes string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !statusIn(appt.Status, cancellableStatuses) {
		return nil, fmt.Errorf("%w: cannot cancel %s appointment", ErrInvalidTransition, appt.Status)
	}
	if until := appt.StartTime.Sub(s.now()); until < s.cfg.CancelCutoff && !actor.CanOverrideCutoff() {
		return nil, ErrCancellationWindow
	}

	var cancelled *Appointment
	err = s.repo.WithinTx(ctx, func(r Repository) error {
		updated, err := r.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		if notes != "" {
			if err := r.SetAppointmentNotes(ctx, updated.ID, notes); err != nil {
				return fmt.Errorf("set cancellation notes: %w", err)
			}
			updated.Notes = notes
		}
		if _, err := r.ReleaseSlot(ctx, appt.TimeSlotID); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		cancelled = updated
		s.logEvent(ctx, r, updated.ID, EventAppointmentCancelled, map[string]any{
			"actor_id":   actor.ID.String(),
			"actor_role": string(actor.Role),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AppointmentTransitions.WithLabelValues(string(StatusCancelled)).Inc()
	s.cache.InvalidateDay(ctx, appt.DoctorID, appt.Date)
	s.notifier.AppointmentEvent(ctx, cancelled.ID, EventAppointmentCancelled)
	return cancelled, nil
}

// Reschedule closes the appointment as RESCHEDULED, frees its slot, and books
// the new slot in the same transaction. A full new slot rolls everything
// back: the original appointment keeps its status and its capacity. The new
// appointment links back through FollowUpTo for the audit trail. No cutoff
// applies; rescheduling is doctor or staff initiated.
func (s *BookingService) Reschedule(ctx context.Context, actor Actor, appointmentID, newSlotID uuid.UUID, notes string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !CanTransition(appt.Status, StatusRescheduled) {
		return nil, fmt.Errorf("%w: cannot reschedule %s appointment", ErrInvalidTransition, appt.Status)
	}

	newSlot, err := s.repo.GetSlotByID(ctx, newSlotID)
	if err != nil {
		return nil, fmt.Errorf("load new slot: %w", err)
	}
	if !newSlot.StartTime.After(s.now()) {
		return nil, ErrSlotInPast
	}

	var replacement *Appointment
	err = s.locker.WithSlotLock(ctx, newSlotID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(r Repository) error {
			if _, err := r.UpdateAppointmentStatus(lockCtx, appt.ID, appt.Status, StatusRescheduled); err != nil {
				return fmt.Errorf("close old appointment: %w", err)
			}
			if _, err := r.ReleaseSlot(lockCtx, appt.TimeSlotID); err != nil {
				return fmt.Errorf("release old slot: %w", err)
			}

			claimed, err := r.ClaimSlot(lockCtx, newSlotID)
			if err != nil {
				return err
			}

			oldID := appt.ID
			next := &Appointment{
				ID:         uuid.New(),
				PatientID:  appt.PatientID,
				DoctorID:   claimed.DoctorID,
				TimeSlotID: claimed.ID,
				Date:       claimed.Date,
				StartTime:  claimed.StartTime,
				EndTime:    claimed.EndTime,
				Status:     s.initialStatus(),
				Reason:     appt.Reason,
				Priority:   appt.Priority,
				Notes:      notes,
				CreatedBy:  actor.ID,
				FollowUpTo: &oldID,
			}
			if err := r.CreateAppointment(lockCtx, next); err != nil {
				return fmt.Errorf("create replacement appointment: %w", err)
			}

			replacement = next
			s.logEvent(lockCtx, r, appt.ID, EventAppointmentRescheduled, map[string]any{
				"new_appointment_id": next.ID.String(),
				"new_slot_id":        newSlotID.String(),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.AppointmentTransitions.WithLabelValues(string(StatusRescheduled)).Inc()
	s.cache.InvalidateDay(ctx, appt.DoctorID, appt.Date)
	s.cache.InvalidateDay(ctx, newSlot.DoctorID, newSlot.Date)
	s.notifier.AppointmentEvent(ctx, replacement.ID, EventAppointmentRescheduled)
	return replacement, nil
}

// Transition moves an appointment along the operational path: confirmed,
// checked_in, in_progress, completed, no_show. Cancelled and rescheduled
// have their own entry points with slot side effects and are rejected here.
func (s *BookingService) Transition(ctx context.Context, actor Actor, appointmentID uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if to == StatusCancelled || to == StatusRescheduled {
		return nil, fmt.Errorf("%w: %s requires its dedicated operation", ErrInvalidTransition, to)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row moved under us between the read and the conditional update.
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	switch to {
	case StatusCheckedIn:
		if err := s.visits.RecordCheckIn(ctx, updated.ID, s.now()); err != nil {
			log.Printf("record check-in for appointment %s: %v", updated.ID, err)
		}
	case StatusInProgress:
		if err := s.visits.RecordVisitStart(ctx, updated.ID, s.now()); err != nil {
			log.Printf("record visit start for appointment %s: %v", updated.ID, err)
		}
	}

	event := eventForStatus[to]
	s.logEvent(ctx, s.repo, updated.ID, event, map[string]any{
		"actor_id": actor.ID.String(),
	})
	metrics.AppointmentTransitions.WithLabelValues(string(to)).Inc()
	s.notifier.AppointmentEvent(ctx, updated.ID, event)
	return updated, nil
}

// MarkOverdueNoShows sweeps confirmed or checked-in appointments whose slot
// ended more than the grace period ago. Intended for the slot worker.
func (s *BookingService) MarkOverdueNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdueConfirmed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		if !CanTransition(appt.Status, StatusNoShow) {
			continue
		}
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusNoShow)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				log.Printf("mark no-show for appointment %s: %v", appt.ID, err)
			}
			continue
		}
		marked++
		s.logEvent(ctx, s.repo, updated.ID, EventAppointmentNoShow, map[string]any{
			"reason": "sweep",
		})
		metrics.AppointmentTransitions.WithLabelValues(string(StatusNoShow)).Inc()
		s.notifier.AppointmentEvent(ctx, updated.ID, EventAppointmentNoShow)
	}
	return marked, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (s *BookingService) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *BookingService) ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByDoctorDay(ctx, doctorID, DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func (s *BookingService) logEvent(ctx context.Context, r Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := r.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

func statusIn(status AppointmentStatus, list []AppointmentStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
