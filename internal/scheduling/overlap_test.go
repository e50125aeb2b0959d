package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(t *testing.T, start, end string, typ ScheduleType) Availability {
	t.Helper()
	s, err := ParseClock(start)
	require.NoError(t, err)
	e, err := ParseClock(end)
	require.NoError(t, err)
	return Availability{
		ID:           uuid.New(),
		Weekday:      time.Monday,
		Start:        s,
		End:          e,
		ScheduleType: typ,
		SlotDuration: 30 * time.Minute,
		MaxPatients:  1,
	}
}

func TestCheckOverlap(t *testing.T) {
	tests := []struct {
		name      string
		candidate [2]string
		existing  [][2]string
		conflict  bool
	}{
		{"empty schedule", [2]string{"09:00", "12:00"}, nil, false},
		{"disjoint", [2]string{"09:00", "12:00"}, [][2]string{{"13:00", "17:00"}}, false},
		{"touching boundaries", [2]string{"12:00", "14:00"}, [][2]string{{"09:00", "12:00"}, {"14:00", "17:00"}}, false},
		{"exact duplicate", [2]string{"09:00", "12:00"}, [][2]string{{"09:00", "12:00"}}, true},
		{"partial overlap", [2]string{"11:00", "14:00"}, [][2]string{{"09:00", "12:00"}}, true},
		{"candidate nested inside", [2]string{"10:00", "11:00"}, [][2]string{{"09:00", "12:00"}}, true},
		{"candidate encloses existing", [2]string{"08:00", "18:00"}, [][2]string{{"09:00", "12:00"}}, true},
		{"one minute overlap", [2]string{"11:59", "14:00"}, [][2]string{{"09:00", "12:00"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := window(t, tt.candidate[0], tt.candidate[1], ScheduleRegular)
			var existing []Availability
			for _, w := range tt.existing {
				existing = append(existing, window(t, w[0], w[1], ScheduleRegular))
			}

			err := CheckOverlap(cand, existing, uuid.Nil)
			if tt.conflict {
				var oe *OverlapError
				require.ErrorAs(t, err, &oe)
				assert.Len(t, oe.ConflictIDs, 1)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckOverlapReportsAllConflicts(t *testing.T) {
	cand := window(t, "08:00", "18:00", ScheduleRegular)
	existing := []Availability{
		window(t, "09:00", "12:00", ScheduleRegular),
		window(t, "13:00", "17:00", ScheduleRegular),
	}

	err := CheckOverlap(cand, existing, uuid.Nil)
	var oe *OverlapError
	require.ErrorAs(t, err, &oe)
	assert.ElementsMatch(t, []uuid.UUID{existing[0].ID, existing[1].ID}, oe.ConflictIDs)
}

func TestCheckOverlapExcludesEditedRow(t *testing.T) {
	existing := window(t, "09:00", "12:00", ScheduleRegular)

	// Editing the same row to a wider window must not conflict with itself.
	edited := existing
	edited.End, _ = ParseClock("13:00")

	assert.NoError(t, CheckOverlap(edited, []Availability{existing}, existing.ID))
}

func TestCheckOverlapIgnoresNonRegular(t *testing.T) {
	cand := window(t, "09:00", "12:00", ScheduleRegular)
	eff := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	dayOff := window(t, "00:00", "23:59", ScheduleDayOff)
	dayOff.EffectiveDate = &eff
	temp := window(t, "09:00", "12:00", ScheduleTemporary)
	temp.EffectiveDate = &eff

	assert.NoError(t, CheckOverlap(cand, []Availability{dayOff, temp}, uuid.Nil))

	// A non-REGULAR candidate never conflicts either.
	assert.NoError(t, CheckOverlap(temp, []Availability{cand}, uuid.Nil))
}
