package transfer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists lecture transfers in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const transferColumns = `id, from_faculty_id, to_faculty_id, timetable_slot_id, date, reason, status, requested_at, responded_at, created_at`

func scanTransfer(row interface{ Scan(...any) error }) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.FromFacultyID, &t.ToFacultyID, &t.SlotID, &t.Date, &t.Reason, &t.Status, &t.RequestedAt, &t.RespondedAt, &t.CreatedAt)
	return t, err
}

// Create inserts a new PENDING transfer.
func (r *Repository) Create(ctx context.Context, t Transfer) (Transfer, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = Pending
	if t.RequestedAt.IsZero() {
		t.RequestedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO lecture_transfers (id, from_faculty_id, to_faculty_id, timetable_slot_id, date, reason, status, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, t.ID, t.FromFacultyID, t.ToFacultyID, t.SlotID, t.Date, t.Reason, t.Status, t.RequestedAt)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return Transfer{}, err
	}
	return t, nil
}

// ByID returns one transfer.
func (r *Repository) ByID(ctx context.Context, id string) (Transfer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM lecture_transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transfer{}, ErrNotFound
	}
	return t, err
}

// Resolve moves a PENDING transfer into a terminal state. The SQL guard means
// only one responder wins a race.
func (r *Repository) Resolve(ctx context.Context, id string, to Status) (Transfer, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		UPDATE lecture_transfers SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+transferColumns, id, to, now)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, lookupErr := r.ByID(ctx, id); lookupErr != nil {
			return Transfer{}, lookupErr
		}
		return Transfer{}, ErrInvalidTransition
	}
	return t, err
}

// List returns transfers involving a faculty member, newest first.
// direction is "incoming", "outgoing", or "" for both.
func (r *Repository) List(ctx context.Context, facultyID, direction string, status Status) ([]Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM lecture_transfers WHERE `
	args := []any{facultyID}
	switch direction {
	case "incoming":
		query += `to_faculty_id = $1`
	case "outgoing":
		query += `from_faculty_id = $1`
	default:
		query += `(from_faculty_id = $1 OR to_faculty_id = $1)`
	}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
