package taking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"classtrack/internal/attendance"
)

// ErrBusy means a save or complete is already in flight for this sheet.
var ErrBusy = errors.New("commit already in flight")

// ErrUnknownStudent means the student is not on the sheet's roster.
var ErrUnknownStudent = errors.New("student not on roster")

// Sheet is the working copy of one session's roster. Record statuses are
// two-tier: each record keeps the last status the server confirmed, and
// pending holds local edits that override it until saved. Toggles are local
// and synchronous; only Save and Complete talk to the backend.
type Sheet struct {
	backend Backend

	mu      sync.Mutex
	session attendance.Session
	records []attendance.Record
	pending map[string]attendance.RecordStatus
	busy    bool
	closed  bool
}

func newSheet(b Backend, sess attendance.Session, records []attendance.Record, seedPresent bool) *Sheet {
	s := &Sheet{
		backend: b,
		session: sess,
		records: records,
		pending: make(map[string]attendance.RecordStatus, len(records)),
	}
	if seedPresent {
		// Fresh sessions start fully present regardless of the server
		// default; the teacher marks exceptions.
		for _, r := range records {
			s.pending[r.StudentID] = attendance.StatusPresent
		}
	}
	return s
}

// Session returns the session the sheet was opened for.
func (s *Sheet) Session() attendance.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Records returns the roster in server order. The slice is a copy; record
// statuses are the last server-confirmed values, not local edits.
func (s *Sheet) Records() []attendance.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]attendance.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Status returns the student's effective status: the pending local edit
// when there is one, the server record otherwise.
func (s *Sheet) Status(studentID string) (attendance.RecordStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(studentID)
}

func (s *Sheet) statusLocked(studentID string) (attendance.RecordStatus, bool) {
	if st, ok := s.pending[studentID]; ok {
		return st, true
	}
	for _, r := range s.records {
		if r.StudentID == studentID {
			return r.Status, true
		}
	}
	return "", false
}

// Toggle advances one student's status through the cycle allowed for the
// session's state. Local only; no other student is affected.
func (s *Sheet) Toggle(studentID string) (attendance.RecordStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.statusLocked(studentID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	next := attendance.NextStatus(s.session.Status, current)
	s.pending[studentID] = next
	return next, nil
}

// Set records a direct local edit, constrained to the same vocabulary
// Toggle cycles through for the session's state.
func (s *Sheet) Set(studentID string, status attendance.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statusLocked(studentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	allowed := attendance.AllowedStatuses(s.session.Status)
	ok := false
	for _, a := range allowed {
		if a == status {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %q not allowed while session is %s",
			attendance.ErrInvalidStatus, status, s.session.Status)
	}
	s.pending[studentID] = status
	return nil
}

// Dirty reports whether the sheet has local edits diverging from the last
// server-confirmed statuses.
func (s *Sheet) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if st, ok := s.pending[r.StudentID]; ok && st != r.Status {
			return true
		}
	}
	return false
}

// Closed reports whether Complete succeeded and the sheet is done.
func (s *Sheet) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// marksLocked builds the full bulk write: one mark per roster record,
// pending edits merged over server statuses.
func (s *Sheet) marksLocked() []attendance.Mark {
	marks := make([]attendance.Mark, 0, len(s.records))
	for _, r := range s.records {
		status := r.Status
		if st, ok := s.pending[r.StudentID]; ok {
			status = st
		}
		marks = append(marks, attendance.Mark{StudentID: r.StudentID, Status: status})
	}
	return marks
}

func (s *Sheet) beginCommit() ([]attendance.Mark, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, "", ErrBusy
	}
	s.busy = true
	return s.marksLocked(), s.session.ID, nil
}

func (s *Sheet) endCommit() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Save commits the whole sheet in one bulk write. On failure the local
// edits stay untouched so the teacher can retry.
func (s *Sheet) Save(ctx context.Context) error {
	marks, sessionID, err := s.beginCommit()
	if err != nil {
		return err
	}
	defer s.endCommit()
	if err := s.backend.BulkMark(ctx, sessionID, marks); err != nil {
		return fmt.Errorf("save attendance: %w", err)
	}
	return nil
}

// Complete saves the sheet, then finalizes the session, so a completed
// session always reflects the local edits. A completion failure leaves the
// sheet open with its edits intact.
func (s *Sheet) Complete(ctx context.Context) error {
	marks, sessionID, err := s.beginCommit()
	if err != nil {
		return err
	}
	defer s.endCommit()
	if err := s.backend.BulkMark(ctx, sessionID, marks); err != nil {
		return fmt.Errorf("save attendance: %w", err)
	}
	sess, err := s.backend.CompleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	s.mu.Lock()
	s.session = sess
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Refresh replaces the whole roster with the server's current truth and
// drops local edits. Reopening a session goes through here.
func (s *Sheet) Refresh(ctx context.Context) error {
	s.mu.Lock()
	sessionID := s.session.ID
	s.mu.Unlock()

	records, err := s.backend.ListRecords(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	s.mu.Lock()
	s.records = records
	s.pending = make(map[string]attendance.RecordStatus, len(records))
	s.mu.Unlock()
	return nil
}
