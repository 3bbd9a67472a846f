// Package sqlite stores courses and attendance records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	id                TEXT PRIMARY KEY,
	code              TEXT NOT NULL,
	name              TEXT NOT NULL,
	department        TEXT NOT NULL DEFAULT '',
	faculty_id        TEXT NOT NULL,
	enrolled_students TEXT
);
CREATE INDEX IF NOT EXISTS courses_faculty_id ON courses (faculty_id);

CREATE TABLE IF NOT EXISTS attendance_records (
	id         TEXT PRIMARY KEY,
	course_id  TEXT NOT NULL,
	faculty_id TEXT NOT NULL,
	date       INTEGER NOT NULL,
	students   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS attendance_records_faculty_id_date ON attendance_records (faculty_id, date DESC);
CREATE INDEX IF NOT EXISTS attendance_records_course_id_date ON attendance_records (course_id, date DESC);
`

// Open opens the database at path and creates missing tables.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
