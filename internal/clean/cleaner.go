// Package clean narrows a mapped event list down to student activity.
//
// Three filters run in order, each order-preserving and each logging the
// surviving count: role, non-student event names, then missing timestamps.
// No filter fails the batch; an empty result is valid.
package clean

import (
	"log/slog"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// DefaultStudentRoleID is Moodle's built-in student role.
const DefaultStudentRoleID = "5"

// DefaultNonStudentEvents are course administration events that never
// reflect learner activity.
var DefaultNonStudentEvents = []string{
	"Course section deleted",
	"Course backup created",
	"Course updated",
	"Course restored",
	"Course reset",
	"Course rollover",
}

// Config controls the filters.
type Config struct {
	StudentRoleID    string
	NonStudentEvents []string
}

// DefaultConfig returns the student role 5 and the default denylist.
func DefaultConfig() Config {
	return Config{
		StudentRoleID:    DefaultStudentRoleID,
		NonStudentEvents: append([]string(nil), DefaultNonStudentEvents...),
	}
}

// Cleaner applies the filters. It holds no mutable state and is safe for
// concurrent use.
type Cleaner struct {
	studentRoleID string
	denylist      map[string]struct{}
	logger        *slog.Logger
}

// New builds a Cleaner. Empty fields in cfg fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Cleaner {
	if cfg.StudentRoleID == "" {
		cfg.StudentRoleID = DefaultStudentRoleID
	}
	if len(cfg.NonStudentEvents) == 0 {
		cfg.NonStudentEvents = DefaultNonStudentEvents
	}
	if logger == nil {
		logger = slog.Default()
	}

	deny := make(map[string]struct{}, len(cfg.NonStudentEvents))
	for _, name := range cfg.NonStudentEvents {
		deny[name] = struct{}{}
	}
	return &Cleaner{
		studentRoleID: cfg.StudentRoleID,
		denylist:      deny,
		logger:        logger,
	}
}

// Clean runs every filter in order and returns the surviving events.
// The input slice is not modified.
func (c *Cleaner) Clean(events []core.RawEvent) []core.RawEvent {
	out := c.FilterRoles(events)
	c.logger.Info("after role filter", "events", len(out))

	out = c.FilterEvents(out)
	c.logger.Info("after event filter", "events", len(out))

	out = FilterTimestamps(out)
	c.logger.Info("after timestamp filter", "events", len(out))

	return out
}

// FilterRoles keeps events attributed to the student role. When no event
// carries role data the input passes through unchanged.
func (c *Cleaner) FilterRoles(events []core.RawEvent) []core.RawEvent {
	hasRoles := false
	for _, e := range events {
		if e.RoleID != "" {
			hasRoles = true
			break
		}
	}
	if !hasRoles {
		return clone(events)
	}
	return keep(events, func(e core.RawEvent) bool {
		return e.RoleID == c.studentRoleID
	})
}

// FilterEvents drops events whose name is on the denylist. Matching is exact.
func (c *Cleaner) FilterEvents(events []core.RawEvent) []core.RawEvent {
	return keep(events, func(e core.RawEvent) bool {
		_, denied := c.denylist[e.EventName]
		return !denied
	})
}

// FilterTimestamps drops events with no parsed time.
func FilterTimestamps(events []core.RawEvent) []core.RawEvent {
	return keep(events, core.RawEvent.HasTime)
}

func keep(events []core.RawEvent, pred func(core.RawEvent) bool) []core.RawEvent {
	out := make([]core.RawEvent, 0, len(events))
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func clone(events []core.RawEvent) []core.RawEvent {
	return append(make([]core.RawEvent, 0, len(events)), events...)
}
