package capture

import (
	"context"
	"log/slog"
	"time"
)

// Rotator refreshes capture tokens of active sessions shortly before they
// expire, so a QR code left on screen keeps working.
type Rotator struct {
	logger   *slog.Logger
	registry *Registry
	every    time.Duration
	margin   time.Duration
}

func NewRotator(logger *slog.Logger, registry *Registry, every, margin time.Duration) *Rotator {
	return &Rotator{
		logger:   logger,
		registry: registry,
		every:    every,
		margin:   margin,
	}
}

// Run rotates tokens until ctx is done.
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "stopping token rotation")
			return
		case <-ticker.C:
			r.Rotate(ctx)
		}
	}
}

// Rotate refreshes every expiring token once and returns how many were refreshed.
func (r *Rotator) Rotate(ctx context.Context) int {
	rotated := 0
	r.registry.Each(func(c *Controller) {
		ok, err := c.RefreshIfExpiring(r.margin)
		if err != nil {
			r.logger.ErrorContext(ctx, "refresh token", "faculty_id", c.FacultyID(), "error", err)
			return
		}
		if ok {
			rotated++
		}
	})
	return rotated
}
