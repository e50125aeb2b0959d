package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AvailabilityService owns a doctor's recurring weekly work windows.
// REGULAR windows are the recurring pattern; TEMPORARY and DAY_OFF rows
// supersede the pattern for their effective date. Conflict checking is
// read-then-validate-then-write: availability edits are low-frequency and
// doctor-scoped, so optimistic concurrency is enough here.
type AvailabilityService struct {
	repo Repository
}

func NewAvailabilityService(repo Repository) *AvailabilityService {
	return &AvailabilityService{repo: repo}
}

func validateAvailability(av *Availability) error {
	if av.Weekday < time.Sunday || av.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if av.ScheduleType != ScheduleDayOff {
		if av.Start >= av.End {
			return ErrInvalidTimeRange
		}
		if av.SlotDuration < time.Minute {
			return ErrInvalidSlotDuration
		}
		if av.MaxPatients < 1 {
			return ErrInvalidCapacity
		}
	}
	switch av.ScheduleType {
	case ScheduleRegular:
	case ScheduleTemporary, ScheduleDayOff:
		if av.EffectiveDate == nil {
			return fmt.Errorf("%w: %s availability requires an effective date", ErrInvalidTimeRange, av.ScheduleType)
		}
	default:
		return fmt.Errorf("unknown schedule type %q", av.ScheduleType)
	}
	return nil
}

// Create validates the window, runs the overlap check against the doctor's
// existing REGULAR windows for the same weekday, and persists it.
func (s *AvailabilityService) Create(ctx context.Context, actor Actor, av *Availability) (*Availability, error) {
	if err := validateAvailability(av); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctorByID(ctx, av.DoctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	existing, err := s.repo.ListRegularForWeekday(ctx, av.DoctorID, av.Weekday)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	if err := CheckOverlap(*av, existing, uuid.Nil); err != nil {
		return nil, err
	}

	if av.ID == uuid.Nil {
		av.ID = uuid.New()
	}
	if err := s.repo.CreateAvailability(ctx, av); err != nil {
		return nil, fmt.Errorf("create availability: %w", err)
	}
	return av, nil
}

// Update re-runs the overlap check excluding the row being edited.
func (s *AvailabilityService) Update(ctx context.Context, actor Actor, av *Availability) (*Availability, error) {
	if err := validateAvailability(av); err != nil {
		return nil, err
	}
	current, err := s.repo.GetAvailabilityByID(ctx, av.ID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	av.DoctorID = current.DoctorID

	existing, err := s.repo.ListRegularForWeekday(ctx, av.DoctorID, av.Weekday)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	if err := CheckOverlap(*av, existing, av.ID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAvailability(ctx, av); err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}
	return av, nil
}

// Delete removes a recurring shift. Future slots derived from it that carry
// no bookings are removed in the same transaction; booked slots survive as
// audit trail.
func (s *AvailabilityService) Delete(ctx context.Context, actor Actor, id uuid.UUID, now time.Time) (int64, error) {
	if _, err := s.repo.GetAvailabilityByID(ctx, id); err != nil {
		return 0, fmt.Errorf("load availability: %w", err)
	}

	var removed int64
	err := s.repo.WithinTx(ctx, func(r Repository) error {
		n, err := r.DeleteFutureUnbookedSlots(ctx, id, now)
		if err != nil {
			return fmt.Errorf("delete future slots: %w", err)
		}
		removed = n
		if err := r.DeleteAvailability(ctx, id); err != nil {
			return fmt.Errorf("delete availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *AvailabilityService) List(ctx context.Context, doctorID uuid.UUID) ([]Availability, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	avs, err := s.repo.ListAvailabilities(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	return avs, nil
}

func (s *AvailabilityService) Get(ctx context.Context, id uuid.UUID) (*Availability, error) {
	av, err := s.repo.GetAvailabilityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return av, nil
}
