package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/facultyattendance/internal/faculty"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

func WithMiddlewares(middlewares ...Middleware) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i > -1; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func WithAccessLogs(logger *slog.Logger) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(rec, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		}
	}
}

func withRecovery(logger *slog.Logger) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic", "path", r.URL.Path, "panic", rec)
					writeJSON(logger, w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
				}
			}()
			next(w, r)
		}
	}
}

type ProfileFinder interface {
	FindByID(ctx context.Context, id faculty.ID) (*faculty.Profile, error)
}

const (
	profileCookieName = "profile_id"
	profileHeaderName = "X-Profile-ID"
)

func profileID(r *http.Request) faculty.ID {
	if cookie, err := r.Cookie(profileCookieName); err == nil && cookie.Value != "" {
		return faculty.ID(cookie.Value)
	}
	return faculty.ID(r.Header.Get(profileHeaderName))
}

// WithAuthentication loads the faculty profile of the request and rejects
// requests without one.
func WithAuthentication(logger *slog.Logger, profiles ProfileFinder) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := profileID(r)
			if id == "" {
				writeJSON(logger, w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
				return
			}
			profile, err := profiles.FindByID(r.Context(), id)
			if errors.Is(err, faculty.ErrNotFound) {
				writeJSON(logger, w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
				return
			} else if err != nil {
				logger.Error("find profile", "error", err)
				writeJSON(logger, w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
				return
			}
			next(w, r.WithContext(faculty.NewContext(r.Context(), profile)))
		}
	}
}
