package records

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type ID string

func NewID() ID {
	return ID(gonanoid.Must())
}

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Flip returns the opposite status. Anything that is not present flips to present.
func (s Status) Flip() Status {
	if s == StatusPresent {
		return StatusAbsent
	}
	return StatusPresent
}

type StudentAttendance struct {
	Status Status `json:"status"`
}

// Record is one class meeting of a course.
type Record struct {
	ID        ID                           `json:"id"`
	CourseID  string                       `json:"courseId"`
	FacultyID string                       `json:"facultyId"`
	Date      time.Time                    `json:"date"`
	Students  map[string]StudentAttendance `json:"students,omitempty"`
}

// PresentCount returns the number of students marked present. Students that
// are not on the course roster are counted too.
func (r Record) PresentCount() int {
	present := 0
	for _, student := range r.Students {
		if student.Status == StatusPresent {
			present++
		}
	}
	return present
}

func ByCourseID(courseID string) func(*Record) bool {
	return func(r *Record) bool {
		return r.CourseID == courseID
	}
}

func ByFacultyID(facultyID string) func(*Record) bool {
	return func(r *Record) bool {
		return r.FacultyID == facultyID
	}
}

func Since(t time.Time) func(*Record) bool {
	return func(r *Record) bool {
		return !r.Date.Before(t)
	}
}
