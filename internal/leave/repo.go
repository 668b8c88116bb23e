package leave

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means no leave matched the id.
	ErrNotFound = errors.New("leave not found")
	// ErrInvalidTransition means the requested status change is not reachable
	// from the leave's current status.
	ErrInvalidTransition = errors.New("leave status transition not allowed")
)

// Repository persists leave requests in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const leaveColumns = `id, faculty_id, date, leave_type, reason, status, created_at`

// Create inserts a new PENDING request.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = Pending
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO faculty_leaves (id, faculty_id, date, leave_type, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, req.ID, req.FacultyID, req.Date, req.Kind, req.Reason, req.Status)
	if err := row.Scan(&req.CreatedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ByID returns one request.
func (r *Repository) ByID(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM faculty_leaves WHERE id = $1`, id)
	var req Request
	if err := row.Scan(&req.ID, &req.FacultyID, &req.Date, &req.Kind, &req.Reason, &req.Status, &req.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// UpdateStatus moves a request out of PENDING. The WHERE clause carries the
// one-way guard so a late second approval or a reject-after-approve loses.
func (r *Repository) UpdateStatus(ctx context.Context, id string, to Status) (Request, error) {
	if to != Approved && to != Rejected {
		return Request{}, ErrInvalidTransition
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE faculty_leaves SET status = $2
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+leaveColumns+`
	`, id, to)
	var req Request
	if err := row.Scan(&req.ID, &req.FacultyID, &req.Date, &req.Kind, &req.Reason, &req.Status, &req.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either missing or no longer PENDING; tell the two apart.
			if _, lookupErr := r.ByID(ctx, id); lookupErr != nil {
				return Request{}, lookupErr
			}
			return Request{}, ErrInvalidTransition
		}
		return Request{}, err
	}
	return req, nil
}

// ApprovedOn returns all APPROVED leaves for a date, for availability checks.
func (r *Repository) ApprovedOn(ctx context.Context, date time.Time) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leaveColumns+` FROM faculty_leaves
		WHERE date = $1 AND status = 'APPROVED'
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.FacultyID, &req.Date, &req.Kind, &req.Reason, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// List returns requests with basic filters, newest date first.
func (r *Repository) List(ctx context.Context, facultyID string, status Status) ([]Request, error) {
	query := `SELECT ` + leaveColumns + ` FROM faculty_leaves`
	args := []any{}
	clauses := []string{}
	if facultyID != "" {
		args = append(args, facultyID)
		clauses = append(clauses, "faculty_id = $1")
	}
	if status != "" {
		args = append(args, status)
		if len(args) == 1 {
			clauses = append(clauses, "status = $1")
		} else {
			clauses = append(clauses, "status = $2")
		}
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY date DESC, created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.FacultyID, &req.Date, &req.Kind, &req.Reason, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
