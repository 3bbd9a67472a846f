package sessions

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/tokens"
)

type State uint8

const (
	StateIdle State = iota
	StateActive
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Mode string

const (
	ModeQR     Mode = "qr"
	ModeManual Mode = "manual"
)

func (m Mode) Valid() bool {
	return m == ModeQR || m == ModeManual
}

type Session struct {
	ID         string                    `json:"sessionId"`
	CourseCode string                    `json:"courseCode"`
	CourseID   string                    `json:"courseId"`
	Mode       Mode                      `json:"mode"`
	Token      tokens.Token              `json:"token"`
	StartedAt  time.Time                 `json:"startedAt"`
	ExpiresAt  time.Time                 `json:"expiresAt"`
	Roster     []string                  `json:"roster"`
	Attendance map[string]records.Status `json:"attendance"`
}

func (s *Session) clone() *Session {
	out := *s
	out.Roster = slices.Clone(s.Roster)
	out.Attendance = maps.Clone(s.Attendance)
	return &out
}

// PresentCount returns the number of students currently marked present.
func (s Session) PresentCount() int {
	present := 0
	for _, status := range s.Attendance {
		if status == records.StatusPresent {
			present++
		}
	}
	return present
}

// Filter returns roster ids in roster order, limited to the given status.
// An empty status returns the whole roster.
func (s Session) Filter(status records.Status) []string {
	out := make([]string, 0, len(s.Roster))
	for _, id := range s.Roster {
		if status == "" || s.Attendance[id] == status {
			out = append(out, id)
		}
	}
	return out
}

// Summary describes a submitted session.
type Summary struct {
	PresentCount int `json:"presentCount"`
	Total        int `json:"total"`
	Percentage   int `json:"percentage"`
}
