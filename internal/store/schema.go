package store

import "context"

// Schema is the engine's persisted layout. The two unique indexes are the
// authoritative race guards: one closes the double-submit window on
// attendance capture, the other keeps concurrent resolution runs from
// double-covering a slot.
const Schema = `
CREATE TABLE IF NOT EXISTS faculty (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	department  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'Active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subject_allocations (
	subject_id  TEXT NOT NULL,
	faculty_id  TEXT NOT NULL REFERENCES faculty(id),
	PRIMARY KEY (subject_id, faculty_id)
);

CREATE TABLE IF NOT EXISTS timetable_slots (
	id          TEXT PRIMARY KEY,
	faculty_id  TEXT NOT NULL REFERENCES faculty(id),
	class_id    TEXT NOT NULL,
	subject_id  TEXT NOT NULL,
	batch_id    TEXT,
	day_of_week TEXT NOT NULL,
	start_time  TEXT NOT NULL,
	room_no     TEXT NOT NULL DEFAULT '',
	valid_from  DATE NOT NULL,
	valid_to    DATE NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (valid_from <= valid_to)
);

CREATE TABLE IF NOT EXISTS faculty_leaves (
	id          TEXT PRIMARY KEY,
	faculty_id  TEXT NOT NULL REFERENCES faculty(id),
	date        DATE NOT NULL,
	leave_type  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'PENDING',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS substitution_assignments (
	id              TEXT PRIMARY KEY,
	src_faculty_id  TEXT NOT NULL REFERENCES faculty(id),
	sub_faculty_id  TEXT NOT NULL REFERENCES faculty(id),
	class_id        TEXT NOT NULL,
	subject_id      TEXT NOT NULL,
	date            DATE NOT NULL,
	start_time      TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	assignment_type TEXT NOT NULL DEFAULT 'AUTO',
	notes           TEXT NOT NULL DEFAULT '',
	assigned_by     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_assignment_coverage
	ON substitution_assignments (src_faculty_id, date, start_time)
	WHERE status <> 'CANCELLED';

CREATE TABLE IF NOT EXISTS attendance_sessions (
	id              TEXT PRIMARY KEY,
	class_id        TEXT NOT NULL,
	subject_id      TEXT NOT NULL,
	batch_id        TEXT,
	faculty_id      TEXT NOT NULL REFERENCES faculty(id),
	date            DATE NOT NULL,
	start_time      TEXT NOT NULL,
	is_substitution BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_session_occurrence
	ON attendance_sessions (class_id, subject_id, COALESCE(batch_id, ''), date, start_time);

CREATE TABLE IF NOT EXISTS attendance_records (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES attendance_sessions(id),
	student_id  TEXT NOT NULL,
	status      TEXT NOT NULL,
	remark      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (session_id, student_id)
);

CREATE TABLE IF NOT EXISTS lecture_transfers (
	id                TEXT PRIMARY KEY,
	from_faculty_id   TEXT NOT NULL REFERENCES faculty(id),
	to_faculty_id     TEXT NOT NULL REFERENCES faculty(id),
	timetable_slot_id TEXT NOT NULL REFERENCES timetable_slots(id),
	date              DATE NOT NULL,
	reason            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'PENDING',
	requested_at      TIMESTAMPTZ NOT NULL,
	responded_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema. All statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, Schema)
	return err
}
