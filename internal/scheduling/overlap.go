package scheduling

import (
	"github.com/google/uuid"
)

// Windows are half-open [start, end): two windows that merely touch at a
// boundary do not overlap.
func windowsOverlap(aStart, aEnd, bStart, bEnd ClockTime) bool {
	return aStart < bEnd && bStart < aEnd
}

// CheckOverlap rejects a candidate REGULAR window that overlaps any existing
// REGULAR window in the list. excludeID skips the row being edited; pass
// uuid.Nil on create. Non-REGULAR rows (temporary, day off) are ignored: they
// supersede the pattern per date rather than compete with it.
func CheckOverlap(candidate Availability, existing []Availability, excludeID uuid.UUID) error {
	if candidate.ScheduleType != ScheduleRegular {
		return nil
	}

	var conflicts []uuid.UUID
	for _, ex := range existing {
		if ex.ID == excludeID || ex.ScheduleType != ScheduleRegular {
			continue
		}
		if windowsOverlap(candidate.Start, candidate.End, ex.Start, ex.End) {
			conflicts = append(conflicts, ex.ID)
		}
	}

	if len(conflicts) > 0 {
		return &OverlapError{ConflictIDs: conflicts}
	}
	return nil
}
