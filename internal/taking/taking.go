// Package taking drives the teacher-facing attendance flow: locate or
// create the session for a timetable slot and date, start it, and work a
// roster sheet locally until the marks are committed in one bulk write.
package taking

import (
	"context"
	"fmt"
	"log"

	"classtrack/internal/attendance"
)

// Backend is the remote service the flow talks to. Implemented by
// apiclient over HTTP and by fakes in tests.
type Backend interface {
	ListSessions(ctx context.Context, date, classID string) ([]attendance.Session, error)
	CreateSession(ctx context.Context, slotID, date, notes string) (attendance.Session, error)
	StartSession(ctx context.Context, id string) (attendance.Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]attendance.Record, error)
	BulkMark(ctx context.Context, sessionID string, marks []attendance.Mark) error
	CompleteSession(ctx context.Context, id string) (attendance.Session, error)
}

// Options tunes the open flow.
type Options struct {
	// Notes is stored on a session created by Open.
	Notes string
	// StrictLookup makes a failed session lookup abort Open instead of
	// degrading to "no session found". The lax default matches classroom
	// usage, where blocking the teacher is worse than risking a duplicate
	// the server rejects anyway.
	StrictLookup bool
}

// StartError reports a session that was created but could not be started.
// The id lets the caller retry with Resume instead of creating a duplicate.
type StartError struct {
	SessionID string
	Err       error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start session %s: %v", e.SessionID, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Find returns the existing session for the slot on the given date, or nil.
// A class can meet several times a day, so results filtered by date and
// class are narrowed by slot id.
func Find(ctx context.Context, b Backend, slotID, classID, date string) (*attendance.Session, error) {
	sessions, err := b.ListSessions(ctx, date, classID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].SlotID == slotID {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// Open resolves the working sheet for a slot and date: reuse the existing
// session when there is one (starting it first if it was created but never
// started), otherwise create and start a fresh one. A fresh session's sheet
// is seeded all-present so the teacher only marks exceptions.
func Open(ctx context.Context, b Backend, slotID, classID, date string, opts Options) (*Sheet, error) {
	existing, err := Find(ctx, b, slotID, classID, date)
	if err != nil {
		if opts.StrictLookup {
			return nil, fmt.Errorf("session lookup: %w", err)
		}
		log.Printf("session lookup failed, proceeding to create: %v", err)
		existing = nil
	}

	if existing != nil {
		sess := *existing
		// A session that was created but never started gets started now;
		// its roster is materialized fresh, so it seeds like a new one.
		fresh := false
		if sess.Status == attendance.SessionNotStarted {
			started, err := b.StartSession(ctx, sess.ID)
			if err != nil {
				return nil, &StartError{SessionID: sess.ID, Err: err}
			}
			sess = started
			fresh = true
		}
		records, err := b.ListRecords(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch roster: %w", err)
		}
		return newSheet(b, sess, records, fresh), nil
	}

	created, err := b.CreateSession(ctx, slotID, date, opts.Notes)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create session: server returned no session id")
	}
	started, err := b.StartSession(ctx, created.ID)
	if err != nil {
		return nil, &StartError{SessionID: created.ID, Err: err}
	}
	records, err := b.ListRecords(ctx, started.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	return newSheet(b, started, records, true), nil
}

// Resume reopens a session by id, starting it if it is still not_started.
// This is the retry path for a session Open created but failed to start.
func Resume(ctx context.Context, b Backend, sessionID string) (*Sheet, error) {
	sess, err := b.StartSession(ctx, sessionID)
	if err != nil {
		return nil, &StartError{SessionID: sessionID, Err: err}
	}
	records, err := b.ListRecords(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	return newSheet(b, sess, records, true), nil
}
