package capture

import (
	"log/slog"
	"sync"
)

type entry struct {
	mu         sync.Mutex
	controller *Controller
}

// Registry keeps one controller per faculty member. Calls for the same
// faculty member are serialized.
type Registry struct {
	logger      *slog.Logger
	courseStore CourseStore
	recordStore RecordStore
	opts        []Option

	entriesGuard sync.Mutex
	entries      map[string]*entry
}

func NewRegistry(
	logger *slog.Logger,
	courseStore CourseStore,
	recordStore RecordStore,
	opts ...Option,
) *Registry {
	return &Registry{
		logger:      logger,
		courseStore: courseStore,
		recordStore: recordStore,
		opts:        opts,
		entries:     make(map[string]*entry),
	}
}

// Do calls fn with the controller of the faculty member, creating it on first use.
func (r *Registry) Do(facultyID string, fn func(*Controller) error) error {
	r.entriesGuard.Lock()
	e, ok := r.entries[facultyID]
	if !ok {
		e = &entry{
			controller: NewController(r.logger, facultyID, r.courseStore, r.recordStore, r.opts...),
		}
		r.entries[facultyID] = e
	}
	r.entriesGuard.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.controller)
}

// Each calls fn for every known controller.
func (r *Registry) Each(fn func(*Controller)) {
	r.entriesGuard.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entriesGuard.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		fn(e.controller)
		e.mu.Unlock()
	}
}
