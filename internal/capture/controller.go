package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/sessions"
	"github.com/facultyattendance/internal/statistics"
	"github.com/facultyattendance/internal/tokens"
)

type CourseStore interface {
	ListByFaculty(ctx context.Context, facultyID string) ([]*courses.Course, error)
}

type RecordStore interface {
	// ListByFaculty must return records sorted by date, most recent first.
	ListByFaculty(ctx context.Context, facultyID string, filters ...func(*records.Record) bool) ([]*records.Record, error)
	Insert(ctx context.Context, record *records.Record) error
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
		c.machineOpts = append(c.machineOpts, sessions.WithClock(now))
	}
}

// WithLocation sets the location note stamped into capture tokens.
func WithLocation(location string) Option {
	return func(c *Controller) {
		c.machineOpts = append(c.machineOpts, sessions.WithLocation(location))
	}
}

// Controller connects the statistics and the attendance session of one
// faculty member to the stores.
type Controller struct {
	logger      *slog.Logger
	facultyID   string
	courseStore CourseStore
	recordStore RecordStore
	machineOpts []sessions.Option
	now         func() time.Time

	machine   *sessions.Machine
	persisted bool
}

func NewController(
	logger *slog.Logger,
	facultyID string,
	courseStore CourseStore,
	recordStore RecordStore,
	opts ...Option,
) *Controller {
	logger = logger.With("faculty_id", facultyID)
	c := &Controller{
		logger:      logger,
		facultyID:   facultyID,
		courseStore: courseStore,
		recordStore: recordStore,
		machineOpts: []sessions.Option{sessions.WithLogger(logger)},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = sessions.New(facultyID, c.machineOpts...)
	return c
}

func (c *Controller) FacultyID() string {
	return c.facultyID
}

func (c *Controller) Courses(ctx context.Context) ([]*courses.Course, error) {
	cc, err := c.courseStore.ListByFaculty(ctx, c.facultyID)
	if err != nil {
		return nil, upstream("list courses", err)
	}
	return cc, nil
}

// LoadDashboard computes statistics over all courses and records of the faculty member.
func (c *Controller) LoadDashboard(ctx context.Context) (*statistics.Stats, error) {
	cc, err := c.Courses(ctx)
	if err != nil {
		return nil, err
	}
	rr, err := c.recordStore.ListByFaculty(ctx, c.facultyID)
	if err != nil {
		return nil, upstream("list records", err)
	}
	return statistics.Compute(rr, cc), nil
}

func (c *Controller) State() sessions.State {
	return c.machine.State()
}

// Session returns a copy of the current session, or nil when there is none.
func (c *Controller) Session() *sessions.Session {
	return c.machine.Session()
}

// Start opens a session for the faculty member's course with the given code.
func (c *Controller) Start(ctx context.Context, courseCode string, mode sessions.Mode) (*sessions.Session, error) {
	if c.machine.State() == sessions.StateSubmitted {
		if !c.persisted {
			return nil, fmt.Errorf("%w: submitted attendance is not saved yet", sessions.ErrInvalidState)
		}
		c.machine = sessions.New(c.facultyID, c.machineOpts...)
		c.persisted = false
	}
	if courseCode == "" {
		return nil, c.machine.Start(courseCode, mode, nil)
	}
	if c.machine.State() != sessions.StateIdle {
		return nil, fmt.Errorf("%w: a session is already %s", sessions.ErrInvalidState, c.machine.State())
	}

	cc, err := c.Courses(ctx)
	if err != nil {
		return nil, err
	}
	course, ok := courses.ByCode(cc, courseCode)
	if !ok {
		return nil, fmt.Errorf("%w: course %q", sessions.ErrNotFound, courseCode)
	}
	if err := c.machine.StartCourse(course, mode); err != nil {
		return nil, err
	}
	return c.machine.Session(), nil
}

func (c *Controller) Refresh() (*sessions.Session, error) {
	if err := c.machine.Refresh(); err != nil {
		return nil, err
	}
	return c.machine.Session(), nil
}

func (c *Controller) Toggle(studentID string) (*sessions.Session, error) {
	if err := c.machine.Toggle(studentID); err != nil {
		return nil, err
	}
	return c.machine.Session(), nil
}

// CheckIn marks the student present using a scanned token. The token must
// belong to the current session and must not be expired.
func (c *Controller) CheckIn(tokenValue, studentID string) (*sessions.Session, error) {
	session := c.machine.Session()
	if session == nil || c.machine.State() != sessions.StateActive {
		return nil, fmt.Errorf("%w: no active session", sessions.ErrInvalidState)
	}
	payload, err := tokens.Parse(tokenValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sessions.ErrValidation, err)
	}
	if payload.SessionID != session.ID {
		return nil, fmt.Errorf("%w: token belongs to another session", sessions.ErrValidation)
	}
	if payload.Timestamp != session.Token.Payload.Timestamp {
		return nil, fmt.Errorf("%w: token was rotated", sessions.ErrValidation)
	}
	if session.Token.Expired(c.now()) {
		return nil, fmt.Errorf("%w: token expired", sessions.ErrValidation)
	}
	if err := c.machine.Mark(studentID, records.StatusPresent); err != nil {
		return nil, err
	}
	return c.machine.Session(), nil
}

// Submit finishes the session and saves the record. When saving fails the
// session stays submitted and Persist can be retried.
func (c *Controller) Submit(ctx context.Context) (*records.Record, sessions.Summary, error) {
	record, summary, err := c.machine.Submit()
	if err != nil {
		return nil, sessions.Summary{}, err
	}
	c.persisted = false
	return record, summary, c.persist(ctx, record)
}

// Persist retries saving a submitted record.
func (c *Controller) Persist(ctx context.Context) (*records.Record, sessions.Summary, error) {
	record, summary, ok := c.machine.Record()
	if !ok {
		return nil, sessions.Summary{}, fmt.Errorf("%w: nothing submitted", sessions.ErrInvalidState)
	}
	if c.persisted {
		return record, summary, nil
	}
	return record, summary, c.persist(ctx, record)
}

func (c *Controller) persist(ctx context.Context, record *records.Record) error {
	if err := c.recordStore.Insert(ctx, record); err != nil {
		c.logger.Error("persist record", "record_id", record.ID, "error", err)
		return upstream("persist record", err)
	}
	c.persisted = true
	c.logger.Info("record persisted", "record_id", record.ID, "course_id", record.CourseID)
	return nil
}

// Pending reports whether a submitted record has not been saved yet.
func (c *Controller) Pending() bool {
	return c.machine.State() == sessions.StateSubmitted && !c.persisted
}

func (c *Controller) Cancel() error {
	return c.machine.Cancel()
}

// Discard drops a submitted record that could not be saved.
func (c *Controller) Discard() error {
	if c.machine.State() != sessions.StateSubmitted {
		return fmt.Errorf("%w: nothing submitted", sessions.ErrInvalidState)
	}
	if record, _, ok := c.machine.Record(); ok && !c.persisted {
		c.logger.Warn("discarding unsaved record", "record_id", record.ID)
	}
	c.machine = sessions.New(c.facultyID, c.machineOpts...)
	c.persisted = false
	return nil
}

// RefreshIfExpiring rotates the token of an active session when it expires
// within margin.
func (c *Controller) RefreshIfExpiring(margin time.Duration) (bool, error) {
	session := c.machine.Session()
	if session == nil || c.machine.State() != sessions.StateActive {
		return false, nil
	}
	if session.ExpiresAt.Sub(c.now()) > margin {
		return false, nil
	}
	if err := c.machine.Refresh(); err != nil {
		return false, err
	}
	return true, nil
}
