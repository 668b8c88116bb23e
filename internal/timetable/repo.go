package timetable

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotOverlap means the faculty already has a slot at this weekday and
	// start time with an overlapping validity window.
	ErrSlotOverlap = errors.New("slot overlaps an existing slot for this faculty")
	// ErrSlotInUse means attendance sessions reference the slot's occurrences.
	ErrSlotInUse = errors.New("slot has recorded sessions and cannot be deleted")
	// ErrNotFound means no slot matched the id.
	ErrNotFound = errors.New("slot not found")
)

// Repository persists timetable slots in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const slotColumns = `id, faculty_id, class_id, subject_id, batch_id, day_of_week, start_time, room_no, valid_from, valid_to, created_at`

func scanSlot(row interface{ Scan(...any) error }) (Slot, error) {
	var s Slot
	var start string
	if err := row.Scan(&s.ID, &s.FacultyID, &s.ClassID, &s.SubjectID, &s.BatchID, &s.Day, &start, &s.Room, &s.ValidFrom, &s.ValidTo, &s.CreatedAt); err != nil {
		return Slot{}, err
	}
	ct, err := ParseClock(start)
	if err != nil {
		return Slot{}, err
	}
	s.Start = ct
	return s, nil
}

// Create inserts a slot after verifying no existing slot for the same
// faculty, weekday and start time has an overlapping validity window.
func (r *Repository) Create(ctx context.Context, s Slot) (Slot, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Slot{}, err
	}
	defer tx.Rollback()

	var clash int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM timetable_slots
		WHERE faculty_id = $1 AND day_of_week = $2 AND start_time = $3
		  AND valid_from <= $5 AND valid_to >= $4
	`, s.FacultyID, s.Day, s.Start.String(), s.ValidFrom, s.ValidTo).Scan(&clash)
	if err != nil {
		return Slot{}, err
	}
	if clash > 0 {
		return Slot{}, ErrSlotOverlap
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO timetable_slots (id, faculty_id, class_id, subject_id, batch_id, day_of_week, start_time, room_no, valid_from, valid_to)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, s.ID, s.FacultyID, s.ClassID, s.SubjectID, s.BatchID, s.Day, s.Start.String(), s.Room, s.ValidFrom, s.ValidTo)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Slot{}, err
	}
	return s, tx.Commit()
}

// ByID returns a single slot.
func (r *Repository) ByID(ctx context.Context, id string) (Slot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM timetable_slots WHERE id = $1`, id)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Slot{}, ErrNotFound
	}
	return s, err
}

// SlotsFor returns a faculty's slots whose weekday matches date and whose
// validity window contains it, ordered by start time.
func (r *Repository) SlotsFor(ctx context.Context, facultyID string, date time.Time) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+slotColumns+` FROM timetable_slots
		WHERE faculty_id = $1 AND day_of_week = $2 AND valid_from <= $3 AND valid_to >= $3
		ORDER BY start_time
	`, facultyID, DayOf(date), date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BusyFaculty returns ids of faculty teaching at the given date and start
// time, per slot validity.
func (r *Repository) BusyFaculty(ctx context.Context, date time.Time, start ClockTime) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT faculty_id FROM timetable_slots
		WHERE day_of_week = $1 AND start_time = $2 AND valid_from <= $3 AND valid_to >= $3
	`, DayOf(date), start.String(), date)
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

// Delete removes a slot unless attendance sessions reference its
// occurrences.
func (r *Repository) Delete(ctx context.Context, id string) error {
	slot, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}
	var sessions int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM attendance_sessions
		WHERE class_id = $1 AND subject_id = $2 AND start_time = $3
	`, slot.ClassID, slot.SubjectID, slot.Start.String()).Scan(&sessions)
	if err != nil {
		return err
	}
	if sessions > 0 {
		return ErrSlotInUse
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
