package sessions

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/tokens"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func newMachine(t *testing.T) (*Machine, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("f1", WithClock(c.now), WithLogger(logger)), c
}

func TestStart(t *testing.T) {
	m, c := newMachine(t)
	if m.State() != StateIdle {
		t.Fatalf("expected idle, got %s", m.State())
	}
	if err := m.Start("CS101", ModeQR, []string{"A", "B", "C"}); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateActive {
		t.Fatalf("expected active, got %s", m.State())
	}

	session := m.Session()
	if session.ID != "CS101-1725267600000" {
		t.Fatalf("unexpected session id %q", session.ID)
	}
	if !session.ExpiresAt.Equal(c.t.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", session.ExpiresAt)
	}
	for _, id := range []string{"A", "B", "C"} {
		if session.Attendance[id] != records.StatusAbsent {
			t.Fatalf("%s: expected absent, got %q", id, session.Attendance[id])
		}
	}

	payload, err := tokens.Parse(session.Token.Value)
	if err != nil {
		t.Fatal(err)
	}
	if payload.SessionID != session.ID || payload.CourseCode != "CS101" || payload.Location != DefaultLocation {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestStartValidation(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("", ModeQR, []string{"A"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected %q, got %v", ErrValidation, err)
	}
	if m.State() != StateIdle || m.Session() != nil {
		t.Fatalf("expected idle without a session, got %s", m.State())
	}
	if err := m.Start("CS101", Mode("bluetooth"), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected %q, got %v", ErrValidation, err)
	}
	if err := m.StartCourse(nil, ModeManual); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected %q, got %v", ErrValidation, err)
	}
	if m.State() != StateIdle {
		t.Fatalf("expected idle, got %s", m.State())
	}
}

func TestStartTwice(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("CS201", ModeManual, []string{"B"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected %q, got %v", ErrInvalidState, err)
	}
	if m.Session().CourseCode != "CS101" {
		t.Fatal("second start must not replace the session")
	}
}

func TestStartCourse(t *testing.T) {
	m, _ := newMachine(t)
	course := &courses.Course{ID: "course-1", Code: "CS101", EnrolledStudents: []string{"A", "B", "A"}}
	if err := m.StartCourse(course, ModeManual); err != nil {
		t.Fatal(err)
	}
	session := m.Session()
	if session.CourseID != "course-1" || session.CourseCode != "CS101" {
		t.Fatalf("unexpected session %+v", session)
	}
	if len(session.Roster) != 2 {
		t.Fatalf("expected duplicate roster ids to collapse, got %v", session.Roster)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	before := m.Session().Attendance
	if err := m.Toggle("A"); err != nil {
		t.Fatal(err)
	}
	if m.Session().Attendance["A"] != records.StatusPresent {
		t.Fatal("expected A to be present")
	}
	if err := m.Toggle("A"); err != nil {
		t.Fatal(err)
	}
	if !maps.Equal(before, m.Session().Attendance) {
		t.Fatalf("expected %v, got %v", before, m.Session().Attendance)
	}
}

func TestToggleUnknownStudent(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Toggle("Z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected %q, got %v", ErrNotFound, err)
	}
	if _, ok := m.Session().Attendance["Z"]; ok {
		t.Fatal("unknown student must not be added")
	}
}

func TestRefreshKeepsAttendance(t *testing.T) {
	m, c := newMachine(t)
	if err := m.Start("CS101", ModeQR, []string{"A", "B", "C"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Toggle("B"); err != nil {
		t.Fatal(err)
	}
	before := m.Session()

	c.t = c.t.Add(4 * time.Minute)
	if err := m.Refresh(); err != nil {
		t.Fatal(err)
	}
	after := m.Session()

	if after.Token.Value == before.Token.Value {
		t.Fatal("expected a new token")
	}
	if !after.ExpiresAt.Equal(c.t.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", after.ExpiresAt)
	}
	if !maps.Equal(before.Attendance, after.Attendance) {
		t.Fatalf("attendance changed: %v -> %v", before.Attendance, after.Attendance)
	}
	if after.ID != before.ID {
		t.Fatal("refresh must keep the session id")
	}
}

func TestRefreshWithoutClockAdvanceChangesToken(t *testing.T) {
	m, c := newMachine(t)
	if err := m.Start("CS101", ModeQR, []string{"A"}); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{m.Session().Token.Value: true}
	for i := 0; i < 3; i++ {
		if err := m.Refresh(); err != nil {
			t.Fatal(err)
		}
		token := m.Session().Token
		if seen[token.Value] {
			t.Fatalf("refresh %d: token did not change: %s", i, token.Value)
		}
		seen[token.Value] = true
		if !token.IssuedAt.After(c.t) {
			t.Fatalf("refresh %d: expected issue time after %s, got %s", i, c.t, token.IssuedAt)
		}
	}
	if got := m.Session().Token.IssuedAt; !got.Equal(c.t.Add(3 * time.Millisecond)) {
		t.Fatalf("unexpected issue time %s", got)
	}
}

func TestSubmit(t *testing.T) {
	m, c := newMachine(t)
	if err := m.Start("CS101", ModeQR, []string{"A", "B", "C"}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"A", "B"} {
		if err := m.Toggle(id); err != nil {
			t.Fatal(err)
		}
	}
	attendance := m.Session().Attendance

	record, summary, err := m.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if summary != (Summary{PresentCount: 2, Total: 3, Percentage: 67}) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(record.Students) != len(attendance) {
		t.Fatalf("expected %d students, got %d", len(attendance), len(record.Students))
	}
	for id, status := range attendance {
		if record.Students[id].Status != status {
			t.Fatalf("%s: expected %q, got %q", id, status, record.Students[id].Status)
		}
	}
	if record.CourseID != "CS101" || record.FacultyID != "f1" || !record.Date.Equal(c.t) {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.ID == "" {
		t.Fatal("expected a record id")
	}
	if m.State() != StateSubmitted {
		t.Fatalf("expected submitted, got %s", m.State())
	}

	kept, keptSummary, ok := m.Record()
	if !ok || kept != record || keptSummary != summary {
		t.Fatal("expected the submitted record to be kept")
	}
}

func TestSubmitEmptyRoster(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, nil); err != nil {
		t.Fatal(err)
	}
	_, summary, err := m.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if summary != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestOperationsOutsideActive(t *testing.T) {
	m, _ := newMachine(t)

	check := func(state State) {
		t.Helper()
		if _, _, err := m.Submit(); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: submit: expected %q, got %v", state, ErrInvalidState, err)
		}
		if err := m.Toggle("A"); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: toggle: expected %q, got %v", state, ErrInvalidState, err)
		}
		if err := m.Mark("A", records.StatusPresent); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: mark: expected %q, got %v", state, ErrInvalidState, err)
		}
		if err := m.Refresh(); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: refresh: expected %q, got %v", state, ErrInvalidState, err)
		}
		if err := m.Cancel(); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: cancel: expected %q, got %v", state, ErrInvalidState, err)
		}
		if m.State() != state {
			t.Fatalf("expected %s, got %s", state, m.State())
		}
	}

	check(StateIdle)

	if err := m.Start("CS101", ModeManual, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Toggle("A"); err != nil {
		t.Fatal(err)
	}
	record, _, err := m.Submit()
	if err != nil {
		t.Fatal(err)
	}
	check(StateSubmitted)

	if record.Students["A"].Status != records.StatusPresent {
		t.Fatal("record must not change after submission")
	}
	if err := m.Start("CS101", ModeManual, []string{"A"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected %q, got %v", ErrInvalidState, err)
	}
}

func TestCancel(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateIdle || m.Session() != nil {
		t.Fatalf("expected idle without session, got %s", m.State())
	}
	if _, _, ok := m.Record(); ok {
		t.Fatal("cancel must not produce a record")
	}
	if err := m.Start("CS201", ModeManual, []string{"B"}); err != nil {
		t.Fatalf("expected a new session after cancel: %v", err)
	}
}

func TestMark(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeQR, []string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Mark("A", records.StatusPresent); err != nil {
			t.Fatal(err)
		}
	}
	if m.Session().Attendance["A"] != records.StatusPresent {
		t.Fatal("expected A to be present")
	}
	if err := m.Mark("A", records.Status("late")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected %q, got %v", ErrValidation, err)
	}
	if err := m.Mark("Z", records.StatusPresent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected %q, got %v", ErrNotFound, err)
	}
}

func TestSessionIsACopy(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A"}); err != nil {
		t.Fatal(err)
	}
	session := m.Session()
	session.Attendance["A"] = records.StatusPresent
	if m.Session().Attendance["A"] != records.StatusAbsent {
		t.Fatal("mutating the returned session must not change the machine")
	}
}

func TestFilter(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Start("CS101", ModeManual, []string{"A", "B", "C"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Toggle("B"); err != nil {
		t.Fatal(err)
	}
	session := m.Session()
	if got := session.Filter(records.StatusPresent); len(got) != 1 || got[0] != "B" {
		t.Fatalf("unexpected present %v", got)
	}
	if got := session.Filter(records.StatusAbsent); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("unexpected absent %v", got)
	}
	if got := session.Filter(""); len(got) != 3 {
		t.Fatalf("unexpected all %v", got)
	}
}
