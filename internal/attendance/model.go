package attendance

import (
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionNotStarted, SessionInProgress, SessionCompleted:
		return true
	default:
		return false
	}
}

// RecordStatus is the per-student attendance mark.
type RecordStatus string

const (
	StatusPresent RecordStatus = "present"
	StatusAbsent  RecordStatus = "absent"
	StatusLate    RecordStatus = "late"
	StatusExcused RecordStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	default:
		return false
	}
}

// Session is one taking of attendance for one timetable slot on one date.
// Counts are aggregates over the session's records and are recomputed
// asynchronously by the worker after bulk marks.
type Session struct {
	ID           string        `json:"id"`
	SlotID       string        `json:"slot_id"`
	ClassID      string        `json:"class_id"`
	Date         string        `json:"date"` // calendar day, YYYY-MM-DD
	Status       SessionStatus `json:"status"`
	Notes        string        `json:"notes"`
	PresentCount int           `json:"present_count"`
	AbsentCount  int           `json:"absent_count"`
	LateCount    int           `json:"late_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Student carries the roster fields joined onto a record.
type Student struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Record is one student's attendance within a session. The record set is
// fixed once the session is started; only Status and Notes mutate after.
type Record struct {
	SessionID string       `json:"session_id"`
	StudentID string       `json:"student_id"`
	Status    RecordStatus `json:"status"`
	Notes     string       `json:"notes"`
	Student   Student      `json:"student"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Mark is one entry of a bulk write.
type Mark struct {
	StudentID string       `json:"student_id"`
	Status    RecordStatus `json:"status"`
}

var (
	ErrNotFound         = errors.New("session not found")
	ErrSlotNotFound     = errors.New("timetable slot not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrAlreadyCompleted = errors.New("session already completed")
	ErrNotStarted       = errors.New("session not started")
	ErrDuplicateSession = errors.New("session already exists for slot and date")
	ErrInvalidStatus    = errors.New("invalid attendance status")
)
