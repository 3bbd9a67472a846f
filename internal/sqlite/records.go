package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/facultyattendance/internal/records"
)

type Records struct {
	db *sql.DB
}

func NewRecords(db *sql.DB) *Records {
	return &Records{
		db: db,
	}
}

// Insert stores the record. Records are immutable, inserting an existing id fails.
func (s *Records) Insert(ctx context.Context, record *records.Record) error {
	students, err := json.Marshal(record.Students)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_records (id, course_id, faculty_id, date, students) VALUES (?, ?, ?, ?, ?)`,
		string(record.ID), record.CourseID, record.FacultyID, record.Date.UnixNano(), string(students),
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Records) FindByID(ctx context.Context, id records.ID) (*records.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecords+` WHERE id = ?`, string(id))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	return record, err
}

const selectRecords = `SELECT id, course_id, faculty_id, date, students FROM attendance_records`

// ListByFaculty returns records of the faculty member sorted by date, most recent first.
func (s *Records) ListByFaculty(ctx context.Context, facultyID string, filters ...func(*records.Record) bool) ([]*records.Record, error) {
	return s.list(ctx, filters, selectRecords+` WHERE faculty_id = ? ORDER BY date DESC, id`, facultyID)
}

// ListRecentByFaculty returns at most limit most recent records of the faculty member.
// A limit of 0 returns all records.
func (s *Records) ListRecentByFaculty(ctx context.Context, facultyID string, limit int) ([]*records.Record, error) {
	if limit <= 0 {
		return s.ListByFaculty(ctx, facultyID)
	}
	return s.list(ctx, nil, selectRecords+` WHERE faculty_id = ? ORDER BY date DESC, id LIMIT ?`, facultyID, limit)
}

// ListByCourse returns records of the course sorted by date, most recent first.
func (s *Records) ListByCourse(ctx context.Context, courseID string, filters ...func(*records.Record) bool) ([]*records.Record, error) {
	return s.list(ctx, filters, selectRecords+` WHERE course_id = ? ORDER BY date DESC, id`, courseID)
}

func (s *Records) list(ctx context.Context, filters []func(*records.Record) bool, query string, args ...any) ([]*records.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make([]*records.Record, 0)
next:
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		for _, filter := range filters {
			if !filter(record) {
				continue next
			}
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanRecord(row scanner) (*records.Record, error) {
	var (
		record   records.Record
		id       string
		date     int64
		students string
	)
	if err := row.Scan(&id, &record.CourseID, &record.FacultyID, &date, &students); err != nil {
		return nil, err
	}
	record.ID = records.ID(id)
	record.Date = time.Unix(0, date).UTC()
	if err := json.Unmarshal([]byte(students), &record.Students); err != nil {
		return nil, fmt.Errorf("record %q: students: %w", id, err)
	}
	return &record, nil
}
