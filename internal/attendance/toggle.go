package attendance

// Toggle cycles grow as a session matures: a session that was never started
// only distinguishes present/absent, a running one adds late, and a completed
// one (reviewed after the fact) adds excused.
var toggleCycles = map[SessionStatus][]RecordStatus{
	SessionNotStarted: {StatusPresent, StatusAbsent},
	SessionInProgress: {StatusPresent, StatusAbsent, StatusLate},
	SessionCompleted:  {StatusPresent, StatusAbsent, StatusLate, StatusExcused},
}

// AllowedStatuses returns the statuses a record may take while the session
// is in the given state.
func AllowedStatuses(session SessionStatus) []RecordStatus {
	cycle, ok := toggleCycles[session]
	if !ok {
		cycle = toggleCycles[SessionNotStarted]
	}
	out := make([]RecordStatus, len(cycle))
	copy(out, cycle)
	return out
}

// NextStatus returns the status following current in the cycle allowed for
// the given session state. A current value outside the cycle (or an unknown
// session status) restarts the cycle at present.
func NextStatus(session SessionStatus, current RecordStatus) RecordStatus {
	cycle, ok := toggleCycles[session]
	if !ok {
		cycle = toggleCycles[SessionNotStarted]
	}
	for i, s := range cycle {
		if s == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return StatusPresent
}
