package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/facultyattendance/internal/courses"
)

type Courses struct {
	db *sql.DB
}

func NewCourses(db *sql.DB) *Courses {
	return &Courses{
		db: db,
	}
}

func (s *Courses) Insert(ctx context.Context, course *courses.Course) error {
	var enrolled sql.NullString
	if course.EnrolledStudents != nil {
		data, err := json.Marshal(course.EnrolledStudents)
		if err != nil {
			return err
		}
		enrolled = sql.NullString{String: string(data), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, code, name, department, faculty_id, enrolled_students)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			department = excluded.department,
			faculty_id = excluded.faculty_id,
			enrolled_students = excluded.enrolled_students`,
		course.ID, course.Code, course.Name, course.Department, course.FacultyID, enrolled,
	); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (s *Courses) FindByID(ctx context.Context, id string) (*courses.Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, department, faculty_id, enrolled_students FROM courses WHERE id = ?`, id)
	course, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, courses.ErrNotFound
	}
	return course, err
}

func (s *Courses) ListByFaculty(ctx context.Context, facultyID string) ([]*courses.Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, department, faculty_id, enrolled_students FROM courses WHERE faculty_id = ? ORDER BY id`, facultyID)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	out := make([]*courses.Course, 0)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, course)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*courses.Course, error) {
	var (
		course   courses.Course
		enrolled sql.NullString
	)
	if err := row.Scan(&course.ID, &course.Code, &course.Name, &course.Department, &course.FacultyID, &enrolled); err != nil {
		return nil, err
	}
	if enrolled.Valid {
		if err := json.Unmarshal([]byte(enrolled.String), &course.EnrolledStudents); err != nil {
			return nil, fmt.Errorf("course %q: enrolled students: %w", course.ID, err)
		}
	}
	return &course, nil
}
