package taking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"classtrack/internal/attendance"
)

// fakeBackend simulates the server side of the flow in memory. Records
// materialized at start default to absent on purpose: the client convention
// of seeding fresh sheets all-present must not depend on the server default.
type fakeBackend struct {
	sessions  map[string]attendance.Session
	records   map[string][]attendance.Record
	slotClass map[string]string
	roster    []attendance.Student
	nextID    int

	listErr     error
	createErr   error
	startErr    error
	recordsErr  error
	markErr     error
	completeErr error

	createWithoutID bool
	markCalls       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions:  make(map[string]attendance.Session),
		records:   make(map[string][]attendance.Record),
		slotClass: map[string]string{"slot-1": "5A", "slot-2": "5A"},
		roster: []attendance.Student{
			{ID: "stu-1", FullName: "Ada Ngoy", Email: "ada@school.test"},
			{ID: "stu-7", FullName: "Bintou Kalala", Email: "bintou@school.test"},
			{ID: "stu-9", FullName: "Chris Ilunga", Email: "chris@school.test"},
		},
	}
}

func (f *fakeBackend) ListSessions(_ context.Context, date, classID string) ([]attendance.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []attendance.Session
	for _, s := range f.sessions {
		if s.Date == date && s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateSession(_ context.Context, slotID, date, notes string) (attendance.Session, error) {
	if f.createErr != nil {
		return attendance.Session{}, f.createErr
	}
	if f.createWithoutID {
		return attendance.Session{}, nil
	}
	f.nextID++
	s := attendance.Session{
		ID:      fmt.Sprintf("sess-%d", f.nextID),
		SlotID:  slotID,
		ClassID: f.slotClass[slotID],
		Date:    date,
		Status:  attendance.SessionNotStarted,
		Notes:   notes,
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeBackend) StartSession(_ context.Context, id string) (attendance.Session, error) {
	if f.startErr != nil {
		return attendance.Session{}, f.startErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return attendance.Session{}, attendance.ErrNotFound
	}
	if s.Status != attendance.SessionNotStarted {
		return attendance.Session{}, attendance.ErrAlreadyStarted
	}
	s.Status = attendance.SessionInProgress
	f.sessions[id] = s
	recs := make([]attendance.Record, 0, len(f.roster))
	for _, st := range f.roster {
		recs = append(recs, attendance.Record{
			SessionID: id,
			StudentID: st.ID,
			Status:    attendance.StatusAbsent, // server default, see comment above
			Student:   st,
		})
	}
	f.records[id] = recs
	return s, nil
}

func (f *fakeBackend) ListRecords(_ context.Context, sessionID string) ([]attendance.Record, error) {
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	recs, ok := f.records[sessionID]
	if !ok {
		return nil, attendance.ErrNotFound
	}
	out := make([]attendance.Record, len(recs))
	copy(out, recs)
	return out, nil
}

func (f *fakeBackend) BulkMark(_ context.Context, sessionID string, marks []attendance.Mark) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.markCalls++
	recs, ok := f.records[sessionID]
	if !ok {
		return attendance.ErrNotFound
	}
	for _, m := range marks {
		for i := range recs {
			if recs[i].StudentID == m.StudentID {
				recs[i].Status = m.Status
			}
		}
	}
	f.records[sessionID] = recs
	return nil
}

func (f *fakeBackend) CompleteSession(_ context.Context, id string) (attendance.Session, error) {
	if f.completeErr != nil {
		return attendance.Session{}, f.completeErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return attendance.Session{}, attendance.ErrNotFound
	}
	if s.Status == attendance.SessionCompleted {
		return attendance.Session{}, attendance.ErrAlreadyCompleted
	}
	s.Status = attendance.SessionCompleted
	f.sessions[id] = s
	return s, nil
}

func mustOpen(t *testing.T, f *fakeBackend) *Sheet {
	t.Helper()
	sheet, err := Open(context.Background(), f, "slot-1", "5A", "2024-03-01", Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return sheet
}

func TestOpenCreatesStartsAndSeedsPresent(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)

	sess := sheet.Session()
	if sess.Status != attendance.SessionInProgress {
		t.Errorf("session status = %s, want in_progress", sess.Status)
	}
	if got := len(sheet.Records()); got != len(f.roster) {
		t.Fatalf("roster size = %d, want %d", got, len(f.roster))
	}
	// Every student defaults to present even though the server materialized
	// the records as absent.
	for _, r := range sheet.Records() {
		got, ok := sheet.Status(r.StudentID)
		if !ok || got != attendance.StatusPresent {
			t.Errorf("student %s status = %s, want present", r.StudentID, got)
		}
	}
}

func TestFindNoMatchOffersCreation(t *testing.T) {
	f := newFakeBackend()
	sess, err := Find(context.Background(), f, "slot-1", "5A", "2024-03-01")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if sess != nil {
		t.Fatalf("Find() = %+v, want nil for empty backend", sess)
	}
}

func TestFindMatchesBySlotNotJustClassAndDate(t *testing.T) {
	f := newFakeBackend()
	ctx := context.Background()
	other, _ := f.CreateSession(ctx, "slot-2", "2024-03-01", "")
	mine, _ := f.CreateSession(ctx, "slot-1", "2024-03-01", "")

	got, err := Find(ctx, f, "slot-1", "5A", "2024-03-01")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if got == nil || got.ID != mine.ID {
		t.Fatalf("Find() = %+v, want session %s (not %s)", got, mine.ID, other.ID)
	}
}

func TestOpenReusesExistingSession(t *testing.T) {
	f := newFakeBackend()
	first := mustOpen(t, f)
	second := mustOpen(t, f)
	if first.Session().ID != second.Session().ID {
		t.Errorf("second Open created a new session: %s vs %s", first.Session().ID, second.Session().ID)
	}
	// Reopened sheets show server truth, not the all-present seed.
	if got, _ := second.Status("stu-1"); got != attendance.StatusAbsent {
		t.Errorf("reopened status = %s, want server value absent", got)
	}
}

func TestOpenResumesCreatedButNeverStartedSession(t *testing.T) {
	f := newFakeBackend()
	orphan, _ := f.CreateSession(context.Background(), "slot-1", "2024-03-01", "")

	sheet := mustOpen(t, f)
	if sheet.Session().ID != orphan.ID {
		t.Fatalf("Open() opened %s, want orphan %s", sheet.Session().ID, orphan.ID)
	}
	if sheet.Session().Status != attendance.SessionInProgress {
		t.Errorf("orphan not started, status = %s", sheet.Session().Status)
	}
}

func TestOpenLookupFailureDegradesToCreate(t *testing.T) {
	f := newFakeBackend()
	f.listErr = errors.New("backend down")
	sheet, err := Open(context.Background(), f, "slot-1", "5A", "2024-03-01", Options{})
	if err != nil {
		t.Fatalf("lax Open() should create despite lookup failure, got %v", err)
	}
	if sheet.Session().Status != attendance.SessionInProgress {
		t.Errorf("status = %s, want in_progress", sheet.Session().Status)
	}
}

func TestOpenStrictLookupBlocksOnFailure(t *testing.T) {
	f := newFakeBackend()
	f.listErr = errors.New("backend down")
	_, err := Open(context.Background(), f, "slot-1", "5A", "2024-03-01", Options{StrictLookup: true})
	if err == nil {
		t.Fatal("strict Open() should fail when the lookup fails")
	}
	if len(f.sessions) != 0 {
		t.Errorf("strict Open() created %d sessions, want 0", len(f.sessions))
	}
}

func TestOpenMissingIDIsHardFailure(t *testing.T) {
	f := newFakeBackend()
	f.createWithoutID = true
	if _, err := Open(context.Background(), f, "slot-1", "5A", "2024-03-01", Options{}); err == nil {
		t.Fatal("Open() should fail when creation returns no session id")
	}
}

func TestOpenStartFailureIsResumable(t *testing.T) {
	f := newFakeBackend()
	f.startErr = errors.New("start rejected")
	_, err := Open(context.Background(), f, "slot-1", "5A", "2024-03-01", Options{})
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Open() error = %v, want *StartError", err)
	}
	if startErr.SessionID == "" {
		t.Fatal("StartError should carry the created session id")
	}

	f.startErr = nil
	sheet, err := Resume(context.Background(), f, startErr.SessionID)
	if err != nil {
		t.Fatalf("Resume() failed: %v", err)
	}
	if sheet.Session().Status != attendance.SessionInProgress {
		t.Errorf("resumed status = %s, want in_progress", sheet.Session().Status)
	}
}

func TestToggleCyclesWithSessionState(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)

	// Two toggles from present in an in_progress session land on late.
	if got, _ := sheet.Toggle("stu-7"); got != attendance.StatusAbsent {
		t.Errorf("first toggle = %s, want absent", got)
	}
	if got, _ := sheet.Toggle("stu-7"); got != attendance.StatusLate {
		t.Errorf("second toggle = %s, want late", got)
	}
	// Third wraps back without ever visiting excused.
	if got, _ := sheet.Toggle("stu-7"); got != attendance.StatusPresent {
		t.Errorf("third toggle = %s, want present", got)
	}
}

func TestToggleIsolation(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	before, _ := sheet.Status("stu-9")
	if _, err := sheet.Toggle("stu-7"); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	after, _ := sheet.Status("stu-9")
	if before != after {
		t.Errorf("toggling stu-7 changed stu-9: %s -> %s", before, after)
	}
}

func TestToggleUnknownStudent(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	if _, err := sheet.Toggle("stu-404"); !errors.Is(err, ErrUnknownStudent) {
		t.Errorf("Toggle(unknown) error = %v, want ErrUnknownStudent", err)
	}
}

func TestSavePersistsMarks(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-7") // absent
	sheet.Toggle("stu-7") // late
	if err := sheet.Save(ctx); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	recs, _ := f.ListRecords(ctx, sheet.Session().ID)
	for _, r := range recs {
		want := attendance.StatusPresent
		if r.StudentID == "stu-7" {
			want = attendance.StatusLate
		}
		if r.Status != want {
			t.Errorf("server status for %s = %s, want %s", r.StudentID, r.Status, want)
		}
	}
}

func TestSaveIdempotent(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-1")
	if err := sheet.Save(ctx); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	first, _ := f.ListRecords(ctx, sheet.Session().ID)
	if err := sheet.Save(ctx); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	second, _ := f.ListRecords(ctx, sheet.Session().ID)

	for i := range first {
		if first[i].Status != second[i].Status {
			t.Errorf("status for %s changed across idempotent saves: %s -> %s",
				first[i].StudentID, first[i].Status, second[i].Status)
		}
	}
}

func TestSaveFailureKeepsLocalEdits(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-7")
	f.markErr = errors.New("write rejected")
	if err := sheet.Save(ctx); err == nil {
		t.Fatal("Save() should fail")
	}
	if got, _ := sheet.Status("stu-7"); got != attendance.StatusAbsent {
		t.Errorf("local edit lost after failed save: %s", got)
	}

	f.markErr = nil
	if err := sheet.Save(ctx); err != nil {
		t.Fatalf("retry Save() failed: %v", err)
	}
	recs, _ := f.ListRecords(ctx, sheet.Session().ID)
	for _, r := range recs {
		if r.StudentID == "stu-7" && r.Status != attendance.StatusAbsent {
			t.Errorf("retried save wrote %s, want absent", r.Status)
		}
	}
}

func TestCompleteSavesUnsavedTogglesFirst(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-9") // absent, never explicitly saved
	if err := sheet.Complete(ctx); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if !sheet.Closed() {
		t.Error("sheet should be closed after Complete")
	}
	if got := f.sessions[sheet.Session().ID].Status; got != attendance.SessionCompleted {
		t.Errorf("session status = %s, want completed", got)
	}
	recs, _ := f.ListRecords(ctx, sheet.Session().ID)
	for _, r := range recs {
		if r.StudentID == "stu-9" && r.Status != attendance.StatusAbsent {
			t.Errorf("completion lost the unsaved toggle: %s", r.Status)
		}
	}
}

func TestCompleteFailureLeavesSheetOpen(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-1")
	f.completeErr = errors.New("complete rejected")
	if err := sheet.Complete(ctx); err == nil {
		t.Fatal("Complete() should fail")
	}
	if sheet.Closed() {
		t.Error("sheet must stay open when completion fails")
	}
	if got, _ := sheet.Status("stu-1"); got != attendance.StatusAbsent {
		t.Errorf("local edit lost: %s", got)
	}
}

func TestRefreshReplacesCacheAndDropsEdits(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)
	ctx := context.Background()

	sheet.Toggle("stu-7")
	sheet.Save(ctx)
	sheet.Toggle("stu-7") // unsaved edit on top
	if err := sheet.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if sheet.Dirty() {
		t.Error("refresh should drop pending edits")
	}
	// The saved value survives, the unsaved one is gone.
	if got, _ := sheet.Status("stu-7"); got != attendance.StatusAbsent {
		t.Errorf("status after refresh = %s, want saved value absent", got)
	}
}

func TestSetValidatesAgainstSessionState(t *testing.T) {
	f := newFakeBackend()
	sheet := mustOpen(t, f)

	// excused is not allowed while the session is in_progress.
	if err := sheet.Set("stu-7", attendance.StatusExcused); !errors.Is(err, attendance.ErrInvalidStatus) {
		t.Errorf("Set(excused) error = %v, want ErrInvalidStatus", err)
	}
	if err := sheet.Set("stu-7", attendance.StatusLate); err != nil {
		t.Errorf("Set(late) failed: %v", err)
	}
	if got, _ := sheet.Status("stu-7"); got != attendance.StatusLate {
		t.Errorf("status = %s, want late", got)
	}
	if err := sheet.Set("stu-404", attendance.StatusLate); !errors.Is(err, ErrUnknownStudent) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownStudent", err)
	}
}
