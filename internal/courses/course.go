package courses

type Course struct {
	ID         string `json:"courseId" validate:"required"`
	Code       string `json:"courseCode" validate:"required"`
	Name       string `json:"courseName" validate:"required"`
	Department string `json:"department"`
	FacultyID  string `json:"facultyId" validate:"required"`
	// EnrolledStudents is the roster. It may be missing from stored documents.
	EnrolledStudents []string `json:"enrolledStudents,omitempty"`
}

// RosterSize returns the number of enrolled students, 0 when the roster is missing.
func (c Course) RosterSize() int {
	return len(c.EnrolledStudents)
}

// Roster returns a copy of the enrolled students.
func (c Course) Roster() []string {
	out := make([]string, len(c.EnrolledStudents))
	copy(out, c.EnrolledStudents)
	return out
}

// ByCode returns the first course with the given code.
func ByCode(cc []*Course, code string) (*Course, bool) {
	for _, c := range cc {
		if c.Code == code {
			return c, true
		}
	}
	return nil, false
}
