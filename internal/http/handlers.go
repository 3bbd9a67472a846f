package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/facultyattendance/internal/capture"
	"github.com/facultyattendance/internal/faculty"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/sessions"
	"github.com/facultyattendance/internal/statistics"
)

type RecordLister interface {
	FindByID(ctx context.Context, id records.ID) (*records.Record, error)
	ListRecentByFaculty(ctx context.Context, facultyID string, limit int) ([]*records.Record, error)
	ListByCourse(ctx context.Context, courseID string, filters ...func(*records.Record) bool) ([]*records.Record, error)
}

type CalendarWriter interface {
	WriteICal(ctx context.Context, w io.Writer, facultyID string) error
}

func Handler(
	logger *slog.Logger,
	registry *capture.Registry,
	profiles ProfileFinder,
	recordLister RecordLister,
	calendars CalendarWriter,
) http.HandlerFunc {
	validate := validator.New(validator.WithRequiredStructEnabled())
	requireAuth := WithAuthentication(logger, profiles)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth())
	mux.HandleFunc("GET /profile", requireAuth(handleGetProfile(logger)))
	mux.HandleFunc("GET /dashboard", requireAuth(handleDashboard(logger, registry)))
	mux.HandleFunc("GET /courses", requireAuth(handleListCourses(logger, registry)))
	mux.HandleFunc("GET /records", requireAuth(handleListRecords(logger, recordLister)))
	mux.HandleFunc("GET /records/{record_id}", requireAuth(handleGetRecord(logger, recordLister)))
	mux.HandleFunc("GET /calendar.ics", requireAuth(handleGetCalendar(logger, calendars)))

	mux.HandleFunc("GET /session", requireAuth(handleGetSession(logger, registry)))
	mux.HandleFunc("POST /session", requireAuth(handleStartSession(logger, validate, registry)))
	mux.HandleFunc("DELETE /session", requireAuth(handleCancelSession(logger, registry)))
	mux.HandleFunc("POST /session/token", requireAuth(handleRefreshToken(logger, registry)))
	mux.HandleFunc("POST /session/students/{student_id}/toggle", requireAuth(handleToggleStudent(logger, registry)))
	mux.HandleFunc("POST /session/check-ins", requireAuth(handleCheckIn(logger, validate, registry)))
	mux.HandleFunc("POST /session/submit", requireAuth(handleSubmitSession(logger, registry)))
	mux.HandleFunc("POST /session/persist", requireAuth(handlePersistSession(logger, registry)))
	mux.HandleFunc("POST /session/discard", requireAuth(handleDiscardSession(logger, registry)))

	return WithMiddlewares(
		WithAccessLogs(logger),
		withRecovery(logger),
	)(mux.ServeHTTP)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}

func statusFromError(err error) int {
	var upstreamErr *capture.UpstreamError
	switch {
	case errors.Is(err, sessions.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sessions.ErrInvalidState):
		return http.StatusConflict
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, op string, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, "error", err)
	}
	writeJSON(logger, w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, validate *validator.Validate, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(sessions.ErrValidation, err)
	}
	if err := validate.Struct(v); err != nil {
		return errors.Join(sessions.ErrValidation, err)
	}
	return nil
}

// withController runs fn with the controller of the authenticated faculty member.
func withController(registry *capture.Registry, r *http.Request, fn func(*capture.Controller) error) error {
	profile, ok := faculty.FromContext(r.Context())
	if !ok {
		return errors.New("profile missing from context")
	}
	return registry.Do(profile.FacultyID, fn)
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetProfile(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, _ := faculty.FromContext(r.Context())
		writeJSON(logger, w, http.StatusOK, profile)
	}
}

func handleDashboard(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stats *statistics.Stats
		if err := withController(registry, r, func(c *capture.Controller) error {
			var err error
			stats, err = c.LoadDashboard(r.Context())
			return err
		}); err != nil {
			writeError(logger, w, "load dashboard", err)
			return
		}
		writeJSON(logger, w, http.StatusOK, stats)
	}
}

func handleListCourses(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out any
		if err := withController(registry, r, func(c *capture.Controller) error {
			cc, err := c.Courses(r.Context())
			out = cc
			return err
		}); err != nil {
			writeError(logger, w, "list courses", err)
			return
		}
		writeJSON(logger, w, http.StatusOK, out)
	}
}

func handleListRecords(logger *slog.Logger, recordLister RecordLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, _ := faculty.FromContext(r.Context())

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			var err error
			if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
				writeJSON(logger, w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
				return
			}
		}

		var (
			rr  []*records.Record
			err error
		)
		if courseID := r.URL.Query().Get("course_id"); courseID != "" {
			rr, err = recordLister.ListByCourse(r.Context(), courseID, records.ByFacultyID(profile.FacultyID))
			if limit > 0 && len(rr) > limit {
				rr = rr[:limit]
			}
		} else {
			rr, err = recordLister.ListRecentByFaculty(r.Context(), profile.FacultyID, limit)
		}
		if err != nil {
			logger.Error("list records", "error", err)
			writeJSON(logger, w, http.StatusBadGateway, errorResponse{Error: "list records failed"})
			return
		}
		writeJSON(logger, w, http.StatusOK, rr)
	}
}

func handleGetRecord(logger *slog.Logger, recordLister RecordLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, _ := faculty.FromContext(r.Context())

		record, err := recordLister.FindByID(r.Context(), records.ID(r.PathValue("record_id")))
		if errors.Is(err, records.ErrNotFound) || (err == nil && record.FacultyID != profile.FacultyID) {
			writeJSON(logger, w, http.StatusNotFound, errorResponse{Error: "record not found"})
			return
		} else if err != nil {
			logger.Error("find record", "error", err)
			writeJSON(logger, w, http.StatusBadGateway, errorResponse{Error: "find record failed"})
			return
		}
		writeJSON(logger, w, http.StatusOK, record)
	}
}

func handleGetCalendar(logger *slog.Logger, calendars CalendarWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, _ := faculty.FromContext(r.Context())

		var buf bytes.Buffer
		if err := calendars.WriteICal(r.Context(), &buf, profile.FacultyID); err != nil {
			logger.Error("write calendar", "error", err)
			writeJSON(logger, w, http.StatusInternalServerError, errorResponse{Error: "write calendar failed"})
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		if _, err := buf.WriteTo(w); err != nil {
			logger.Error("send calendar", "error", err)
		}
	}
}

type sessionResponse struct {
	State   sessions.State    `json:"state"`
	Session *sessions.Session `json:"session,omitempty"`
}

// sessionHandler runs fn and responds with the resulting session.
func sessionHandler(
	logger *slog.Logger,
	registry *capture.Registry,
	op string,
	fn func(*capture.Controller, *http.Request) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp sessionResponse
		if err := withController(registry, r, func(c *capture.Controller) error {
			if err := fn(c, r); err != nil {
				return err
			}
			resp.State = c.State()
			resp.Session = c.Session()
			return nil
		}); err != nil {
			writeError(logger, w, op, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}

func handleGetSession(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "get session", func(*capture.Controller, *http.Request) error {
		return nil
	})
}

type startSessionRequest struct {
	CourseCode string        `json:"courseCode" validate:"required"`
	Mode       sessions.Mode `json:"mode" validate:"required,oneof=qr manual"`
}

func handleStartSession(logger *slog.Logger, validate *validator.Validate, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "start session", func(c *capture.Controller, r *http.Request) error {
		var req startSessionRequest
		if err := decode(r, validate, &req); err != nil {
			return err
		}
		_, err := c.Start(r.Context(), req.CourseCode, req.Mode)
		return err
	})
}

func handleCancelSession(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "cancel session", func(c *capture.Controller, _ *http.Request) error {
		return c.Cancel()
	})
}

func handleRefreshToken(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "refresh token", func(c *capture.Controller, _ *http.Request) error {
		_, err := c.Refresh()
		return err
	})
}

func handleToggleStudent(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "toggle student", func(c *capture.Controller, r *http.Request) error {
		_, err := c.Toggle(r.PathValue("student_id"))
		return err
	})
}

type checkInRequest struct {
	Token     string `json:"token" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}

func handleCheckIn(logger *slog.Logger, validate *validator.Validate, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "check in", func(c *capture.Controller, r *http.Request) error {
		var req checkInRequest
		if err := decode(r, validate, &req); err != nil {
			return err
		}
		_, err := c.CheckIn(req.Token, req.StudentID)
		return err
	})
}

func handleDiscardSession(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return sessionHandler(logger, registry, "discard session", func(c *capture.Controller, _ *http.Request) error {
		return c.Discard()
	})
}

type submitResponse struct {
	Record  *records.Record  `json:"record,omitempty"`
	Summary sessions.Summary `json:"summary"`
	Saved   bool             `json:"saved"`
	Error   string           `json:"error,omitempty"`
}

func submitHandler(
	logger *slog.Logger,
	registry *capture.Registry,
	op string,
	fn func(context.Context, *capture.Controller) (*records.Record, sessions.Summary, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp submitResponse
		err := withController(registry, r, func(c *capture.Controller) error {
			var err error
			resp.Record, resp.Summary, err = fn(r.Context(), c)
			resp.Saved = resp.Record != nil && !c.Pending()
			return err
		})
		if err == nil {
			writeJSON(logger, w, http.StatusOK, resp)
			return
		}
		if resp.Record == nil {
			writeError(logger, w, op, err)
			return
		}
		// attendance is captured but not saved, the client may retry
		logger.Error(op, "record_id", resp.Record.ID, "error", err)
		resp.Error = err.Error()
		writeJSON(logger, w, statusFromError(err), resp)
	}
}

func handleSubmitSession(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return submitHandler(logger, registry, "submit session", func(ctx context.Context, c *capture.Controller) (*records.Record, sessions.Summary, error) {
		return c.Submit(ctx)
	})
}

func handlePersistSession(logger *slog.Logger, registry *capture.Registry) http.HandlerFunc {
	return submitHandler(logger, registry, "persist session", func(ctx context.Context, c *capture.Controller) (*records.Record, sessions.Summary, error) {
		return c.Persist(ctx)
	})
}
