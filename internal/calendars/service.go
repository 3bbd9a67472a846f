package calendars

import (
	"context"
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/statistics"
)

// namespace scopes event uids derived from record ids.
var namespace = uuid.MustParse("3f1d2c8e-6b7a-4f0e-9a51-2d4c7b8e9f10")

type CourseStore interface {
	ListByFaculty(ctx context.Context, facultyID string) ([]*courses.Course, error)
}

type RecordStore interface {
	ListByFaculty(ctx context.Context, facultyID string, filters ...func(*records.Record) bool) ([]*records.Record, error)
}

type Service struct {
	courseStore CourseStore
	recordStore RecordStore
	classLength time.Duration
}

func NewService(
	courseStore CourseStore,
	recordStore RecordStore,
	classLength time.Duration,
) *Service {
	return &Service{
		courseStore: courseStore,
		recordStore: recordStore,
		classLength: classLength,
	}
}

// WriteICal writes every class held by the faculty member as a calendar event.
func (s *Service) WriteICal(ctx context.Context, w io.Writer, facultyID string) error {
	cc, err := s.courseStore.ListByFaculty(ctx, facultyID)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}
	rr, err := s.recordStore.ListByFaculty(ctx, facultyID)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	coursesByID := make(map[string]*courses.Course, len(cc))
	for _, course := range cc {
		coursesByID[course.ID] = course
	}

	icalendar := ics.NewCalendar()
	icalendar.SetName("Attendance")
	for _, record := range rr {
		course, ok := coursesByID[record.CourseID]
		if !ok {
			continue
		}
		present := record.PresentCount()
		ievent := icalendar.AddEvent(EventUID(record.ID))
		ievent.SetSummary(fmt.Sprintf("%s %s: %d/%d present", course.Code, course.Name, present, course.RosterSize()))
		ievent.SetDescription(fmt.Sprintf("Attendance %d%%", statistics.Percent(present, course.RosterSize())))
		if course.Department != "" {
			ievent.SetLocation(course.Department)
		}
		ievent.SetStartAt(record.Date)
		ievent.SetEndAt(record.Date.Add(s.classLength))
	}
	return icalendar.SerializeTo(w)
}

// EventUID returns a stable event uid for the record.
func EventUID(id records.ID) string {
	return uuid.NewSHA1(namespace, []byte(id)).String()
}
