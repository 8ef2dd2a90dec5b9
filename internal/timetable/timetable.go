// Package timetable exposes read-only access to recurring class slots.
// Slots are managed elsewhere; attendance only resolves which slot a
// session belongs to.
package timetable

import (
	"context"
	"database/sql"
	"errors"
)

// Slot is a recurring class meeting assigned to a teacher.
type Slot struct {
	ID        string `json:"id"`
	TeacherID string `json:"teacher_id"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	Subject   string `json:"subject"`
	Room      string `json:"room"`
	Weekday   int    `json:"weekday"` // 0 = Sunday
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
}

// Repository reads timetable slots from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const slotCols = `id, teacher_id, class_id, class_name, subject, room, weekday, starts_at, ends_at`

// ListForTeacher returns the teacher's slots ordered by weekday and start time.
func (r *Repository) ListForTeacher(ctx context.Context, teacherID string) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+slotCols+` FROM timetable_slots
		WHERE teacher_id = $1
		ORDER BY weekday, starts_at
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.TeacherID, &s.ClassID, &s.ClassName, &s.Subject, &s.Room,
			&s.Weekday, &s.StartsAt, &s.EndsAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Get returns a single slot, or nil when unknown.
func (r *Repository) Get(ctx context.Context, id string) (*Slot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotCols+` FROM timetable_slots WHERE id = $1`, id)
	var s Slot
	if err := row.Scan(&s.ID, &s.TeacherID, &s.ClassID, &s.ClassName, &s.Subject, &s.Room,
		&s.Weekday, &s.StartsAt, &s.EndsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
