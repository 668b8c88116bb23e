package roster

import (
	"context"
	"database/sql"
	"errors"
)

// Faculty is one member of the candidate pool.
type Faculty struct {
	ID         string
	Name       string
	Department string
}

// ErrNotFound means no faculty matched the id.
var ErrNotFound = errors.New("faculty not found")

// Repository reads the faculty roster. The engine never writes here.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ActiveFaculty returns active faculty excluding one id, in roster order
// (name, then id, so pool iteration is deterministic).
func (r *Repository) ActiveFaculty(ctx context.Context, excludeID string) ([]Faculty, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, department FROM faculty
		WHERE status = 'Active' AND id <> $1
		ORDER BY name, id
	`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Faculty
	for rows.Next() {
		var f Faculty
		if err := rows.Scan(&f.ID, &f.Name, &f.Department); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ByID returns one faculty row.
func (r *Repository) ByID(ctx context.Context, id string) (Faculty, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, department FROM faculty WHERE id = $1`, id)
	var f Faculty
	if err := row.Scan(&f.ID, &f.Name, &f.Department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Faculty{}, ErrNotFound
		}
		return Faculty{}, err
	}
	return f, nil
}

// AllocatedFaculty returns ids of faculty allocated to teach a subject.
func (r *Repository) AllocatedFaculty(ctx context.Context, subjectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT faculty_id FROM subject_allocations WHERE subject_id = $1
	`, subjectID)
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
