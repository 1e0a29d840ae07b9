package store

import "database/sql"

// Migrate applies the schema. Statements are idempotent so this is safe to
// run on every boot.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS institutions (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		email               TEXT UNIQUE NOT NULL,
		phone               TEXT NOT NULL DEFAULT '',
		code                TEXT UNIQUE NOT NULL,
		number_of_campus    INTEGER NOT NULL DEFAULT 0,
		is_details_complete BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		email          TEXT UNIQUE NOT NULL,
		password       TEXT NOT NULL,
		role           TEXT NOT NULL,
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		college_code   TEXT NOT NULL DEFAULT '',
		phone          TEXT NOT NULL DEFAULT '',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_onboarded   BOOLEAN NOT NULL DEFAULT FALSE,
		face_image_url TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_users_institution ON users(institution_id);

	CREATE TABLE IF NOT EXISTS licenses (
		id             TEXT PRIMARY KEY,
		license_key    TEXT UNIQUE NOT NULL,
		type           TEXT NOT NULL,
		status         TEXT NOT NULL,
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		issued_at      TIMESTAMPTZ NOT NULL,
		expires_at     TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_licenses_institution ON licenses(institution_id, issued_at DESC);

	CREATE TABLE IF NOT EXISTS campuses (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		coordinates    JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_campuses_institution ON campuses(institution_id);

	CREATE TABLE IF NOT EXISTS network_allowlists (
		id             TEXT PRIMARY KEY,
		institution_id TEXT UNIQUE NOT NULL REFERENCES institutions(id),
		ips            JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS departments (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		department_code TEXT NOT NULL,
		campus_id       TEXT REFERENCES campuses(id),
		institution_id  TEXT NOT NULL REFERENCES institutions(id),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_departments_institution ON departments(institution_id);

	CREATE TABLE IF NOT EXISTS years (
		id            TEXT PRIMARY KEY,
		department_id TEXT NOT NULL REFERENCES departments(id),
		name          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id            TEXT PRIMARY KEY,
		department_id TEXT NOT NULL REFERENCES departments(id),
		year_id       TEXT NOT NULL REFERENCES years(id),
		name          TEXT NOT NULL,
		code          TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_subjects_dept_year ON subjects(department_id, year_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL,
		user_id        TEXT NOT NULL REFERENCES users(id),
		institution_id TEXT NOT NULL REFERENCES institutions(id),
		subject_id     TEXT,
		ip             TEXT NOT NULL,
		latitude       DOUBLE PRECISION NOT NULL,
		longitude      DOUBLE PRECISION NOT NULL,
		metadata       JSONB NOT NULL DEFAULT '{}',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance(session_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_attendance_user    ON attendance(user_id);
	`
	_, err := db.Exec(schema)
	return err
}
