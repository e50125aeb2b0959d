package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-service/internal/metrics"
)

// SlotService expands availability windows into concrete dated slots and
// serves the day-view slot listings.
type SlotService struct {
	repo    Repository
	cache   SlotCache
	horizon time.Duration // maximum generation range per call
	now     func() time.Time
}

func NewSlotService(repo Repository, cache SlotCache, horizonDays int) *SlotService {
	if cache == nil {
		cache = NoopSlotCache{}
	}
	return &SlotService{
		repo:    repo,
		cache:   cache,
		horizon: time.Duration(horizonDays) * 24 * time.Hour,
		now:     time.Now,
	}
}

// GenerateFromAvailability expands the doctor's availability windows into
// slots for every date in [startDate, endDate]. Regular windows follow the
// weekday pattern; a temporary window supersedes the pattern on its effective
// date, and a day off suppresses the date. overrideDuration replaces each
// window's own slot duration when non-zero. In strict mode an already
// existing (doctor, date, start) slot fails the whole call; otherwise it is
// skipped, which makes re-generation idempotent. All inserts happen in one
// transaction: a call either emits its full slot set or nothing.
func (s *SlotService) GenerateFromAvailability(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time, overrideDuration time.Duration, strict bool) ([]TimeSlot, error) {
	startDate = DateOnly(startDate)
	endDate = DateOnly(endDate)
	today := DateOnly(s.now())

	if startDate.After(endDate) {
		return nil, ErrInvalidTimeRange
	}
	if startDate.Before(today) {
		return nil, ErrSlotInPast
	}
	if endDate.Sub(startDate) > s.horizon {
		return nil, ErrHorizonExceeded
	}
	if overrideDuration != 0 && overrideDuration < time.Minute {
		return nil, ErrInvalidSlotDuration
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created []TimeSlot
	err := s.repo.WithinTx(ctx, func(r Repository) error {
		var batch []TimeSlot
		for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
			dayOff, err := r.HasDayOff(ctx, doctorID, date)
			if err != nil {
				return fmt.Errorf("check day off: %w", err)
			}
			if dayOff {
				continue
			}

			// Temporary windows for the exact date replace the recurring
			// pattern there; otherwise the weekday's regular windows apply.
			windows, err := r.ListTemporaryForDate(ctx, doctorID, date)
			if err != nil {
				return fmt.Errorf("list temporary availabilities: %w", err)
			}
			if len(windows) == 0 {
				windows, err = r.ListRegularForWeekday(ctx, doctorID, date.Weekday())
				if err != nil {
					return fmt.Errorf("list availabilities: %w", err)
				}
			}

			for _, av := range windows {
				if !av.IsAvailable {
					continue
				}
				width := av.SlotDuration
				if overrideDuration != 0 {
					width = overrideDuration
				}
				slots, err := s.emitWindow(ctx, r, av.DoctorID, &av, date, av.Start, av.End, width, strict)
				if err != nil {
					return err
				}
				batch = append(batch, slots...)
			}
		}

		if len(batch) == 0 {
			return nil
		}
		if err := r.CreateSlots(ctx, batch); err != nil {
			return fmt.Errorf("create slots: %w", err)
		}
		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterGeneration(ctx, doctorID, created)
	return created, nil
}

// GenerateFromSpecificDates emits slots for explicit one-off windows rather
// than the recurring weekday pattern.
func (s *SlotService) GenerateFromSpecificDates(ctx context.Context, doctorID uuid.UUID, windows []DateWindow, duration time.Duration, maxPatients int, strict bool) ([]TimeSlot, error) {
	if duration < time.Minute {
		return nil, ErrInvalidSlotDuration
	}
	if maxPatients < 1 {
		return nil, ErrInvalidCapacity
	}
	today := DateOnly(s.now())
	for _, w := range windows {
		if w.Start >= w.End {
			return nil, ErrInvalidTimeRange
		}
		date := DateOnly(w.Date)
		if date.Before(today) {
			return nil, ErrSlotInPast
		}
		if date.Sub(today) > s.horizon {
			return nil, ErrHorizonExceeded
		}
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created []TimeSlot
	err := s.repo.WithinTx(ctx, func(r Repository) error {
		var batch []TimeSlot
		for _, w := range windows {
			slots, err := s.emitWindow(ctx, r, doctorID, nil, DateOnly(w.Date), w.Start, w.End, duration, strict)
			if err != nil {
				return err
			}
			for i := range slots {
				slots[i].MaxPatients = maxPatients
			}
			batch = append(batch, slots...)
		}

		if len(batch) == 0 {
			return nil
		}
		if err := r.CreateSlots(ctx, batch); err != nil {
			return fmt.Errorf("create slots: %w", err)
		}
		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterGeneration(ctx, doctorID, created)
	return created, nil
}

// emitWindow partitions [start, end) on date into consecutive width-sized
// slots. A trailing remainder shorter than width is dropped. Existing slots
// are skipped, or fail the call in strict mode.
func (s *SlotService) emitWindow(ctx context.Context, r Repository, doctorID uuid.UUID, av *Availability, date time.Time, start, end ClockTime, width time.Duration, strict bool) ([]TimeSlot, error) {
	var out []TimeSlot
	for cur := start; cur.Add(width) <= end; cur = cur.Add(width) {
		slotStart := cur.On(date)

		exists, err := r.SlotExists(ctx, doctorID, date, slotStart)
		if err != nil {
			return nil, fmt.Errorf("check existing slot: %w", err)
		}
		if exists {
			if strict {
				return nil, fmt.Errorf("%w: doctor %s at %s", ErrSlotAlreadyExists, doctorID, slotStart.Format(time.RFC3339))
			}
			continue
		}

		slot := TimeSlot{
			ID:          uuid.New(),
			DoctorID:    doctorID,
			Date:        date,
			StartTime:   slotStart,
			EndTime:     cur.Add(width).On(date),
			Status:      SlotAvailable,
			IsAvailable: true,
			MaxPatients: 1,
		}
		if av != nil {
			id := av.ID
			slot.AvailabilityID = &id
			slot.Location = av.Location
			slot.Department = av.Department
			slot.Room = av.Room
			slot.MaxPatients = av.MaxPatients
		}
		out = append(out, slot)
	}
	return out, nil
}

func (s *SlotService) afterGeneration(ctx context.Context, doctorID uuid.UUID, created []TimeSlot) {
	metrics.SlotsGenerated.Add(float64(len(created)))
	seen := map[time.Time]struct{}{}
	for _, slot := range created {
		if _, ok := seen[slot.Date]; ok {
			continue
		}
		seen[slot.Date] = struct{}{}
		s.cache.InvalidateDay(ctx, doctorID, slot.Date)
	}
}

// GenerateUpcoming re-runs non-strict generation over the rolling horizon for
// every doctor. Intended for the slot worker; skipping already generated
// slots makes each run idempotent.
func (s *SlotService) GenerateUpcoming(ctx context.Context, horizonDays int) (int, error) {
	doctorIDs, err := s.repo.ListDoctorIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list doctors: %w", err)
	}

	today := DateOnly(s.now())
	end := today.AddDate(0, 0, horizonDays)

	total := 0
	for _, id := range doctorIDs {
		created, err := s.GenerateFromAvailability(ctx, id, today, end, 0, false)
		if err != nil {
			log.Printf("slot generation for doctor %s failed: %v", id, err)
			continue
		}
		total += len(created)
	}
	return total, nil
}

// ListForDay serves the day view, preferring the cache. Cached listings may
// be marginally stale; booking correctness never depends on them.
func (s *SlotService) ListForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	date = DateOnly(date)
	if slots, ok := s.cache.GetDaySlots(ctx, doctorID, date); ok {
		return slots, nil
	}
	slots, err := s.repo.ListSlotsForDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	s.cache.SetDaySlots(ctx, doctorID, date, slots)
	return slots, nil
}

// CancelSlot marks a slot cancelled for doctor unavailability. The row is
// kept: booked slots are never physically deleted. A slot still referenced
// by an active appointment is refused until that appointment is cancelled or
// rescheduled.
func (s *SlotService) CancelSlot(ctx context.Context, actor Actor, slotID uuid.UUID) (*TimeSlot, error) {
	if actor.Role == RolePatient {
		return nil, fmt.Errorf("%w: patients cannot cancel slots", ErrNotPermitted)
	}
	if appt, err := s.repo.ActiveAppointmentForSlot(ctx, slotID); err == nil {
		return nil, fmt.Errorf("%w: appointment %s", ErrSlotHasAppointment, appt.ID)
	} else if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("check slot appointments: %w", err)
	}
	slot, err := s.repo.CancelSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("cancel slot: %w", err)
	}
	s.cache.InvalidateDay(ctx, slot.DoctorID, slot.Date)
	return slot, nil
}
