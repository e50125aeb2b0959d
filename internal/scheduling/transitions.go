package scheduling

// transitionTable is the authoritative appointment state machine. Cancelled
// and rescheduled targets appear here for the guard, but are only reachable
// through Cancel and Reschedule, which own the slot-capacity side effects.
var transitionTable = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to AppointmentStatus) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
