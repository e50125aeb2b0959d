package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAvailabilityFixture(t *testing.T) (*AvailabilityService, *MemoryRepository, uuid.UUID) {
	t.Helper()
	repo := NewMemoryRepository()
	doctorID := uuid.New()
	repo.AddDoctor(Doctor{ID: doctorID, Name: "Dr. Osei"})
	return NewAvailabilityService(repo), repo, doctorID
}

func TestCreateAvailability(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	av := window(t, "09:00", "12:00", ScheduleRegular)
	av.ID = uuid.Nil
	av.DoctorID = doctorID

	created, err := svc.Create(ctx, staffActor, &av)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Start, got.Start)
	assert.Equal(t, created.End, got.End)
}

func TestCreateAvailabilityValidation(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	base := func() Availability {
		av := window(t, "09:00", "12:00", ScheduleRegular)
		av.DoctorID = doctorID
		return av
	}

	tests := []struct {
		name   string
		mutate func(*Availability)
		want   error
	}{
		{"inverted window", func(av *Availability) { av.Start, av.End = av.End, av.Start }, ErrInvalidTimeRange},
		{"zero-length window", func(av *Availability) { av.End = av.Start }, ErrInvalidTimeRange},
		{"bad weekday", func(av *Availability) { av.Weekday = time.Weekday(9) }, ErrInvalidWeekday},
		{"sub-minute duration", func(av *Availability) { av.SlotDuration = 30 * time.Second }, ErrInvalidSlotDuration},
		{"zero capacity", func(av *Availability) { av.MaxPatients = 0 }, ErrInvalidCapacity},
		{"temporary without effective date", func(av *Availability) { av.ScheduleType = ScheduleTemporary }, ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := base()
			tt.mutate(&av)
			_, err := svc.Create(ctx, staffActor, &av)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	unknown := base()
	unknown.DoctorID = uuid.New()
	_, err := svc.Create(ctx, staffActor, &unknown)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestCreateDayOffSkipsWindowValidation(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)

	eff := testMonday
	av := Availability{
		DoctorID:      doctorID,
		Weekday:       testMonday.Weekday(),
		ScheduleType:  ScheduleDayOff,
		EffectiveDate: &eff,
	}

	_, err := svc.Create(context.Background(), staffActor, &av)
	assert.NoError(t, err)
}

func TestCreateAvailabilityRejectsOverlap(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	first := window(t, "09:00", "12:00", ScheduleRegular)
	first.DoctorID = doctorID
	created, err := svc.Create(ctx, staffActor, &first)
	require.NoError(t, err)

	second := window(t, "11:00", "14:00", ScheduleRegular)
	second.DoctorID = doctorID
	_, err = svc.Create(ctx, staffActor, &second)

	var oe *OverlapError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, []uuid.UUID{created.ID}, oe.ConflictIDs)

	// A different weekday with the same hours is fine.
	tuesday := window(t, "11:00", "14:00", ScheduleRegular)
	tuesday.DoctorID = doctorID
	tuesday.Weekday = time.Tuesday
	_, err = svc.Create(ctx, staffActor, &tuesday)
	assert.NoError(t, err)
}

func TestUpdateAvailabilityExcludesOwnRow(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	av := window(t, "09:00", "12:00", ScheduleRegular)
	av.DoctorID = doctorID
	created, err := svc.Create(ctx, staffActor, &av)
	require.NoError(t, err)

	// Widening the same row must not conflict with itself.
	edited := *created
	edited.End, _ = ParseClock("13:00")
	updated, err := svc.Update(ctx, staffActor, &edited)
	require.NoError(t, err)
	assert.Equal(t, "13:00", updated.End.String())

	other := window(t, "14:00", "17:00", ScheduleRegular)
	other.DoctorID = doctorID
	_, err = svc.Create(ctx, staffActor, &other)
	require.NoError(t, err)

	// But it still conflicts with a different row.
	edited.End, _ = ParseClock("15:00")
	_, err = svc.Update(ctx, staffActor, &edited)
	var oe *OverlapError
	assert.ErrorAs(t, err, &oe)

	missing := window(t, "09:00", "10:00", ScheduleRegular)
	_, err = svc.Update(ctx, staffActor, &missing)
	assert.ErrorIs(t, err, ErrAvailabilityNotFound)
}

func TestDeleteAvailabilityRemovesFutureUnbookedSlots(t *testing.T) {
	svc, repo, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	av := window(t, "09:00", "12:00", ScheduleRegular)
	av.DoctorID = doctorID
	created, err := svc.Create(ctx, staffActor, &av)
	require.NoError(t, err)

	avID := created.ID
	mkSlot := func(start time.Time, booked bool) uuid.UUID {
		s := TimeSlot{
			ID:             uuid.New(),
			DoctorID:       doctorID,
			AvailabilityID: &avID,
			Date:           DateOnly(start),
			StartTime:      start,
			EndTime:        start.Add(30 * time.Minute),
			Status:         SlotAvailable,
			IsAvailable:    true,
			MaxPatients:    1,
		}
		if booked {
			s.Status = SlotBooked
			s.CurrentPatients = 1
			s.IsAvailable = false
		}
		repo.AddSlot(s)
		return s.ID
	}

	pastID := mkSlot(testNow.Add(-48*time.Hour), false)
	futureFreeID := mkSlot(testNow.Add(48*time.Hour), false)
	futureBookedID := mkSlot(testNow.Add(72*time.Hour), true)

	removed, err := svc.Delete(ctx, staffActor, avID, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = svc.Get(ctx, avID)
	assert.ErrorIs(t, err, ErrAvailabilityNotFound)

	// Past and booked slots survive as history.
	_, err = repo.GetSlotByID(ctx, pastID)
	assert.NoError(t, err)
	_, err = repo.GetSlotByID(ctx, futureBookedID)
	assert.NoError(t, err)
	_, err = repo.GetSlotByID(ctx, futureFreeID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestListAvailabilities(t *testing.T) {
	svc, _, doctorID := newAvailabilityFixture(t)
	ctx := context.Background()

	for _, hours := range [][2]string{{"09:00", "12:00"}, {"13:00", "17:00"}} {
		av := window(t, hours[0], hours[1], ScheduleRegular)
		av.DoctorID = doctorID
		_, err := svc.Create(ctx, staffActor, &av)
		require.NoError(t, err)
	}

	avs, err := svc.List(ctx, doctorID)
	require.NoError(t, err)
	assert.Len(t, avs, 2)

	_, err = svc.List(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
