package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists sessions and records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionCols = `id, slot_id, class_id, date::text, status, notes, present_count, absent_count, late_count, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SlotID, &s.ClassID, &s.Date, &s.Status, &s.Notes,
		&s.PresentCount, &s.AbsentCount, &s.LateCount, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// CreateSession inserts a new session in not_started state. A (slot, date)
// pair that already has a session yields ErrDuplicateSession.
func (r *Repository) CreateSession(ctx context.Context, slotID, date, notes string) (Session, error) {
	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, slot_id, class_id, date, status, notes)
		SELECT $1, s.id, s.class_id, $3, 'not_started', $4
		FROM timetable_slots s WHERE s.id = $2
		RETURNING `+sessionCols+`
	`, id, slotID, date, notes)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSlotNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Session{}, ErrDuplicateSession
		}
		return Session{}, err
	}
	return sess, nil
}

// GetSession returns a single session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM attendance_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns sessions with basic filters. Empty filter values are
// skipped; teacherID filters through the session's timetable slot.
func (r *Repository) ListSessions(ctx context.Context, date, classID, teacherID string, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + prefixCols("a", sessionCols) + ` FROM attendance_sessions a`
	args := []any{}
	clauses := []string{}
	if teacherID != "" {
		query += ` JOIN timetable_slots s ON s.id = a.slot_id`
		clauses = append(clauses, "s.teacher_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, teacherID)
	}
	if date != "" {
		clauses = append(clauses, "a.date = $"+strconv.Itoa(len(args)+1))
		args = append(args, date)
	}
	if classID != "" {
		clauses = append(clauses, "a.class_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, classID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// StartSession flips a not_started session to in_progress and materializes
// one record per enrolled student, defaulted to present, in one transaction.
func (r *Repository) StartSession(ctx context.Context, id string) (Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var status SessionStatus
	var classID string
	err = tx.QueryRowContext(ctx,
		`SELECT status, class_id FROM attendance_sessions WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &classID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if status != SessionNotStarted {
		return Session{}, ErrAlreadyStarted
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, status)
		SELECT $1, e.student_id, 'present'
		FROM enrollments e WHERE e.class_id = $2
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, id, classID); err != nil {
		return Session{}, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE attendance_sessions
		SET status = 'in_progress',
		    present_count = (SELECT COUNT(*) FROM attendance_records WHERE session_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+sessionCols+`
	`, id)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, err
	}
	return sess, tx.Commit()
}

// ListRecords returns a session's records with joined student fields,
// ordered by student name so the roster renders stably.
func (r *Repository) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.session_id, r.student_id, r.status, r.notes, r.updated_at,
		       st.id, st.full_name, st.email
		FROM attendance_records r
		JOIN students st ON st.id = r.student_id
		WHERE r.session_id = $1
		ORDER BY st.full_name, st.id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.Notes, &rec.UpdatedAt,
			&rec.Student.ID, &rec.Student.FullName, &rec.Student.Email); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// BulkMark writes all marks for a session in one transaction. Students not
// in the mark list keep their stored status; marks for students outside the
// roster update nothing (the record set is fixed once the session starts).
func (r *Repository) BulkMark(ctx context.Context, sessionID string, marks []Mark) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status SessionStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM attendance_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == SessionNotStarted {
		return ErrNotStarted
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE attendance_records
		SET status = $3, updated_at = NOW()
		WHERE session_id = $1 AND student_id = $2
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, m := range marks {
		if _, err := stmt.ExecContext(ctx, sessionID, m.StudentID, m.Status); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE attendance_sessions SET updated_at = NOW() WHERE id = $1`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// CompleteSession transitions in_progress -> completed.
func (r *Repository) CompleteSession(ctx context.Context, id string) (Session, error) {
	var status SessionStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM attendance_sessions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	switch status {
	case SessionCompleted:
		return Session{}, ErrAlreadyCompleted
	case SessionNotStarted:
		return Session{}, ErrNotStarted
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_sessions SET status = 'completed', updated_at = NOW()
		WHERE id = $1
		RETURNING `+sessionCols+`
	`, id)
	return scanSession(row)
}

// DeleteSession removes a session and, through FK cascade, its records.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshCounts recomputes the session aggregates from its records. Runs in
// the worker after bulk marks rather than inline in the write path.
func (r *Repository) RefreshCounts(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET
			present_count = (SELECT COUNT(*) FROM attendance_records WHERE session_id = $1 AND status = 'present'),
			absent_count  = (SELECT COUNT(*) FROM attendance_records WHERE session_id = $1 AND status = 'absent'),
			late_count    = (SELECT COUNT(*) FROM attendance_records WHERE session_id = $1 AND status = 'late'),
			updated_at = NOW()
		WHERE id = $1
	`, sessionID)
	return err
}

// TeacherAccount is a teacher login row.
type TeacherAccount struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// GetTeacherAccount returns a teacher by id, or nil when unknown.
func (r *Repository) GetTeacherAccount(ctx context.Context, teacherID string) (*TeacherAccount, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, created_at
		FROM teachers WHERE id = $1
	`, teacherID)
	var t TeacherAccount
	if err := row.Scan(&t.ID, &t.FullName, &t.Email, &t.PasswordHash, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (teacher_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, teacherID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
