package attendance

import "testing"

func TestNextStatusCycles(t *testing.T) {
	tests := []struct {
		name    string
		session SessionStatus
		cycle   []RecordStatus
	}{
		{
			name:    "not started cycles present and absent only",
			session: SessionNotStarted,
			cycle:   []RecordStatus{StatusPresent, StatusAbsent, StatusPresent},
		},
		{
			name:    "in progress adds late",
			session: SessionInProgress,
			cycle:   []RecordStatus{StatusPresent, StatusAbsent, StatusLate, StatusPresent},
		},
		{
			name:    "completed adds excused",
			session: SessionCompleted,
			cycle:   []RecordStatus{StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusPresent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < len(tt.cycle)-1; i++ {
				got := NextStatus(tt.session, tt.cycle[i])
				if got != tt.cycle[i+1] {
					t.Errorf("NextStatus(%s, %s) = %s, want %s", tt.session, tt.cycle[i], got, tt.cycle[i+1])
				}
			}
		})
	}
}

func TestNextStatusNeverLeavesAllowedSet(t *testing.T) {
	allowed := map[SessionStatus]map[RecordStatus]bool{
		SessionNotStarted: {StatusPresent: true, StatusAbsent: true},
		SessionInProgress: {StatusPresent: true, StatusAbsent: true, StatusLate: true},
		SessionCompleted:  {StatusPresent: true, StatusAbsent: true, StatusLate: true, StatusExcused: true},
	}
	all := []RecordStatus{StatusPresent, StatusAbsent, StatusLate, StatusExcused, RecordStatus("bogus")}

	for session, set := range allowed {
		for _, current := range all {
			got := NextStatus(session, current)
			if !set[got] {
				t.Errorf("NextStatus(%s, %s) = %s, outside allowed set", session, current, got)
			}
		}
	}
}

func TestNextStatusUnknownInputsRestartAtPresent(t *testing.T) {
	if got := NextStatus(SessionInProgress, StatusExcused); got != StatusPresent {
		t.Errorf("excused is not in the in_progress cycle, want restart at present, got %s", got)
	}
	if got := NextStatus(SessionStatus("unknown"), StatusPresent); got != StatusAbsent {
		t.Errorf("unknown session status should use the minimal cycle, got %s", got)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []RecordStatus{StatusPresent, StatusAbsent, StatusLate, StatusExcused} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if RecordStatus("tardy").Valid() {
		t.Error("tardy should not be valid")
	}
	if !SessionInProgress.Valid() || SessionStatus("open").Valid() {
		t.Error("session status validity mismatch")
	}
}

func TestAllowedStatusesGrowWithSessionState(t *testing.T) {
	if got := len(AllowedStatuses(SessionNotStarted)); got != 2 {
		t.Errorf("not_started allows %d statuses, want 2", got)
	}
	if got := len(AllowedStatuses(SessionInProgress)); got != 3 {
		t.Errorf("in_progress allows %d statuses, want 3", got)
	}
	if got := len(AllowedStatuses(SessionCompleted)); got != 4 {
		t.Errorf("completed allows %d statuses, want 4", got)
	}
	// Returned slice is a copy; mutating it must not corrupt the table.
	s := AllowedStatuses(SessionCompleted)
	s[0] = RecordStatus("mutated")
	if got := NextStatus(SessionCompleted, StatusPresent); got != StatusAbsent {
		t.Errorf("table corrupted by caller mutation: NextStatus = %s", got)
	}
}
