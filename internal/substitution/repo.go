package substitution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attendro/internal/timetable"
)

var (
	// ErrAlreadyCovered means a non-cancelled assignment already exists for
	// the (src faculty, date, start time) identity key.
	ErrAlreadyCovered = errors.New("slot already covered by an assignment")
	// ErrNotFound means no assignment matched the id.
	ErrNotFound = errors.New("assignment not found")
)

const uniqueViolation = "23505"

// Repository persists substitution assignments in Postgres. Both the engine
// and the transfer workflow write through Insert, so the partial unique index
// is the single authority on coverage.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const assignmentColumns = `id, src_faculty_id, sub_faculty_id, class_id, subject_id, date, start_time, status, assignment_type, notes, assigned_by, created_at`

func scanAssignment(row interface{ Scan(...any) error }) (Assignment, error) {
	var a Assignment
	var start string
	if err := row.Scan(&a.ID, &a.SrcFacultyID, &a.SubFacultyID, &a.ClassID, &a.SubjectID, &a.Date, &start, &a.Status, &a.Type, &a.Notes, &a.AssignedBy, &a.CreatedAt); err != nil {
		return Assignment{}, err
	}
	ct, err := timetable.ParseClock(start)
	if err != nil {
		return Assignment{}, err
	}
	a.Start = ct
	return a, nil
}

// Insert writes an assignment. ON CONFLICT against the partial unique index
// on non-cancelled (src_faculty_id, date, start_time) makes concurrent
// resolution runs race-safe; a lost race surfaces as ErrAlreadyCovered.
func (r *Repository) Insert(ctx context.Context, a Assignment) (Assignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO substitution_assignments
			(id, src_faculty_id, sub_faculty_id, class_id, subject_id, date, start_time, status, assignment_type, notes, assigned_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (src_faculty_id, date, start_time) WHERE status <> 'CANCELLED' DO NOTHING
		RETURNING created_at
	`, a.ID, a.SrcFacultyID, a.SubFacultyID, a.ClassID, a.SubjectID, a.Date, a.Start.String(), a.Status, a.Type, a.Notes, a.AssignedBy)
	if err := row.Scan(&a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrAlreadyCovered
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Assignment{}, ErrAlreadyCovered
		}
		return Assignment{}, err
	}
	return a, nil
}

// CoveredTimes returns start times already covered for a source faculty on a
// date by non-cancelled assignments.
func (r *Repository) CoveredTimes(ctx context.Context, srcFacultyID string, date time.Time) ([]timetable.ClockTime, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_time FROM substitution_assignments
		WHERE src_faculty_id = $1 AND date = $2 AND status <> 'CANCELLED'
	`, srcFacultyID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []timetable.ClockTime
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		ct, err := timetable.ParseClock(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// SubstitutesAt returns faculty already substituting at a moment, for the
// availability resolver's double-booking rule.
func (r *Repository) SubstitutesAt(ctx context.Context, date time.Time, start timetable.ClockTime) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sub_faculty_id FROM substitution_assignments
		WHERE date = $1 AND start_time = $2 AND status <> 'CANCELLED'
	`, date, start.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatus applies a lifecycle transition under the transition table.
func (r *Repository) UpdateStatus(ctx context.Context, id string, to Status) (Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT status FROM substitution_assignments WHERE id = $1 FOR UPDATE`, id)
	var current Status
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	if !CanTransition(current, to) {
		return Assignment{}, ErrInvalidTransition
	}
	updated := tx.QueryRowContext(ctx, `
		UPDATE substitution_assignments SET status = $2 WHERE id = $1
		RETURNING `+assignmentColumns, id, to)
	a, err := scanAssignment(updated)
	if err != nil {
		return Assignment{}, err
	}
	return a, tx.Commit()
}

// Filters narrow List.
type Filters struct {
	Date         *time.Time
	DateFrom     *time.Time
	DateTo       *time.Time
	SrcFacultyID string
	SubFacultyID string
	Status       Status
}

// List returns assignments, newest date first then by start time.
func (r *Repository) List(ctx context.Context, f Filters) ([]Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM substitution_assignments`
	args := []any{}
	clauses := []string{}
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Date != nil {
		add("date = $%d", *f.Date)
	}
	if f.DateFrom != nil {
		add("date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("date <= $%d", *f.DateTo)
	}
	if f.SrcFacultyID != "" {
		add("src_faculty_id = $%d", f.SrcFacultyID)
	}
	if f.SubFacultyID != "" {
		add("sub_faculty_id = $%d", f.SubFacultyID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY date DESC, start_time"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
