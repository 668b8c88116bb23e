package session

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attendro/internal/timetable"
)

// ErrDuplicateSession means a session already exists for the identity key.
var ErrDuplicateSession = errors.New("attendance already captured for this slot-occurrence")

const uniqueViolation = "23505"

// Repository persists sessions and their records in Postgres. The unique
// index on the identity key is what actually closes the double-submit race;
// the service's pre-check only exists for a friendlier error path.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, class_id, subject_id, batch_id, faculty_id, date, start_time, is_substitution, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var start string
	if err := row.Scan(&s.ID, &s.ClassID, &s.SubjectID, &s.BatchID, &s.FacultyID, &s.Date, &start, &s.IsSubstitution, &s.CreatedAt); err != nil {
		return Session{}, err
	}
	ct, err := parseStart(start)
	if err != nil {
		return Session{}, err
	}
	s.Start = ct
	return s, nil
}

// Exists reports whether a session exists for the identity key.
func (r *Repository) Exists(ctx context.Context, key Key) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM attendance_sessions
		WHERE class_id = $1 AND subject_id = $2
		  AND COALESCE(batch_id, '') = COALESCE($3, '')
		  AND date = $4 AND start_time = $5
	`, key.ClassID, key.SubjectID, key.BatchID, key.Date, key.Start.String()).Scan(&n)
	return n > 0, err
}

// CreateWithRecords inserts the session and its per-student rows in one
// transaction. A unique violation on the identity key maps to
// ErrDuplicateSession so a double submit fails closed.
func (r *Repository) CreateWithRecords(ctx context.Context, s Session, records []Record) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, class_id, subject_id, batch_id, faculty_id, date, start_time, is_substitution)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, s.ID, s.ClassID, s.SubjectID, s.BatchID, s.FacultyID, s.Date, s.Start.String(), s.IsSubstitution)
	if err := row.Scan(&s.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Session{}, ErrDuplicateSession
		}
		return Session{}, err
	}

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_records (id, session_id, student_id, status, remark)
			VALUES ($1,$2,$3,$4,$5)
		`, rec.ID, s.ID, rec.StudentID, rec.Status, rec.Remark); err != nil {
			return Session{}, err
		}
	}
	return s, tx.Commit()
}

// SessionsFor returns a faculty's sessions on a date.
func (r *Repository) SessionsFor(ctx context.Context, facultyID string, date time.Time) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE faculty_id = $1 AND date = $2
	`, facultyID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// List returns sessions for a class/subject with an optional date range,
// newest first.
func (r *Repository) List(ctx context.Context, classID, subjectID string, from, to *time.Time) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE 1=1`
	args := []any{}
	if classID != "" {
		args = append(args, classID)
		query += ` AND class_id = $1`
	}
	if subjectID != "" {
		args = append(args, subjectID)
		query += ` AND subject_id = $` + itoa(len(args))
	}
	if from != nil {
		args = append(args, *from)
		query += ` AND date >= $` + itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND date <= $` + itoa(len(args))
	}
	query += ` ORDER BY date DESC, start_time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// Records returns the per-student rows of a session.
func (r *Repository) Records(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, status, remark, created_at
		FROM attendance_records WHERE session_id = $1 ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &rec.Remark, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseStart(s string) (timetable.ClockTime, error) {
	return timetable.ParseClock(s)
}

func itoa(i int) string { return strconv.Itoa(i) }

func collectSessions(rows *sql.Rows) ([]Session, error) {
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
