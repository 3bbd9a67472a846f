package sessions

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/statistics"
	"github.com/facultyattendance/internal/tokens"
)

// DefaultLocation is stamped into tokens when no location is configured.
const DefaultLocation = "Room-101, CS Building"

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

func WithLocation(location string) Option {
	return func(m *Machine) {
		m.location = location
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// Machine runs one attendance session: idle, active, then submitted.
// A submitted machine is done, the next session needs a new Machine.
//
// Machine is not safe for concurrent use.
type Machine struct {
	facultyID string
	location  string
	now       func() time.Time
	logger    *slog.Logger

	state   State
	session *Session
	record  *records.Record
	summary Summary
}

func New(facultyID string, opts ...Option) *Machine {
	m := &Machine{
		facultyID: facultyID,
		location:  DefaultLocation,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	return m.state
}

// Session returns a copy of the current session, or nil when idle.
func (m *Machine) Session() *Session {
	if m.session == nil {
		return nil
	}
	return m.session.clone()
}

// Record returns the packaged record and its summary once submitted.
func (m *Machine) Record() (*records.Record, Summary, bool) {
	if m.state != StateSubmitted {
		return nil, Summary{}, false
	}
	return m.record, m.summary, true
}

// Start opens a session for the course code. The course code is also used as
// the record's course id, see StartCourse.
func (m *Machine) Start(courseCode string, mode Mode, roster []string) error {
	return m.start(courseCode, courseCode, mode, roster)
}

// StartCourse opens a session for the course using its roster.
func (m *Machine) StartCourse(course *courses.Course, mode Mode) error {
	if course == nil {
		return fmt.Errorf("%w: no course selected", ErrValidation)
	}
	return m.start(course.Code, course.ID, mode, course.Roster())
}

func (m *Machine) start(courseCode, courseID string, mode Mode, roster []string) error {
	if m.state != StateIdle {
		return fmt.Errorf("%w: cannot start a session while %s", ErrInvalidState, m.state)
	}
	if courseCode == "" {
		return fmt.Errorf("%w: select a course first", ErrValidation)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}

	now := m.now()
	id := fmt.Sprintf("%s-%d", courseCode, now.UnixMilli())
	token, err := tokens.Issue(id, courseCode, m.location, now)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	attendance := make(map[string]records.Status, len(roster))
	dedup := make([]string, 0, len(roster))
	for _, studentID := range roster {
		if _, ok := attendance[studentID]; ok {
			continue
		}
		attendance[studentID] = records.StatusAbsent
		dedup = append(dedup, studentID)
	}

	m.session = &Session{
		ID:         id,
		CourseCode: courseCode,
		CourseID:   courseID,
		Mode:       mode,
		Token:      *token,
		StartedAt:  now,
		ExpiresAt:  token.Expires,
		Roster:     dedup,
		Attendance: attendance,
	}
	m.state = StateActive
	m.logger.Info("session started", "session_id", id, "mode", mode, "roster", len(dedup))
	return nil
}

// Refresh rotates the token. Collected attendance is kept as is.
func (m *Machine) Refresh() error {
	if m.state != StateActive {
		return fmt.Errorf("%w: cannot refresh token while %s", ErrInvalidState, m.state)
	}
	// Tokens carry millisecond timestamps, so every refresh moves at least
	// one millisecond past the previous token.
	issuedAt := m.now()
	last := m.session.Token.IssuedAt.Truncate(time.Millisecond)
	if !issuedAt.Truncate(time.Millisecond).After(last) {
		issuedAt = last.Add(time.Millisecond)
	}
	token, err := tokens.Issue(m.session.ID, m.session.CourseCode, m.location, issuedAt)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	m.session.Token = *token
	m.session.ExpiresAt = token.Expires
	m.logger.Debug("token refreshed", "session_id", m.session.ID, "expires", token.Expires)
	return nil
}

// Toggle flips the student between present and absent.
func (m *Machine) Toggle(studentID string) error {
	if m.state != StateActive {
		return fmt.Errorf("%w: cannot toggle attendance while %s", ErrInvalidState, m.state)
	}
	status, ok := m.session.Attendance[studentID]
	if !ok {
		return fmt.Errorf("%w: student %q is not on the roster", ErrNotFound, studentID)
	}
	m.session.Attendance[studentID] = status.Flip()
	return nil
}

// Mark sets the status of the student.
func (m *Machine) Mark(studentID string, status records.Status) error {
	if m.state != StateActive {
		return fmt.Errorf("%w: cannot mark attendance while %s", ErrInvalidState, m.state)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if _, ok := m.session.Attendance[studentID]; !ok {
		return fmt.Errorf("%w: student %q is not on the roster", ErrNotFound, studentID)
	}
	m.session.Attendance[studentID] = status
	return nil
}

// Submit packages the session into a record and finishes the machine.
func (m *Machine) Submit() (*records.Record, Summary, error) {
	if m.state != StateActive {
		return nil, Summary{}, fmt.Errorf("%w: cannot submit while %s", ErrInvalidState, m.state)
	}

	students := make(map[string]records.StudentAttendance, len(m.session.Attendance))
	for studentID, status := range m.session.Attendance {
		students[studentID] = records.StudentAttendance{Status: status}
	}
	present := m.session.PresentCount()
	total := len(m.session.Roster)

	m.record = &records.Record{
		ID:        records.NewID(),
		CourseID:  m.session.CourseID,
		FacultyID: m.facultyID,
		Date:      m.session.StartedAt,
		Students:  students,
	}
	m.summary = Summary{
		PresentCount: present,
		Total:        total,
		Percentage:   statistics.Percent(present, total),
	}
	m.state = StateSubmitted
	m.logger.Info("session submitted",
		"session_id", m.session.ID,
		"record_id", m.record.ID,
		"present", present,
		"total", total)
	return m.record, m.summary, nil
}

// Cancel drops the active session without producing a record.
func (m *Machine) Cancel() error {
	if m.state != StateActive {
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidState, m.state)
	}
	m.logger.Info("session cancelled", "session_id", m.session.ID)
	m.session = nil
	m.state = StateIdle
	return nil
}
