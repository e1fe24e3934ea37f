// Package classify applies a rule engine to a whole event list and
// summarises the result.
package classify

import (
	"log/slog"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/rules"
)

// Classifier is a thin wrapper over an engine. Safe for concurrent use.
type Classifier struct {
	engine *rules.Engine
	logger *slog.Logger
}

// New builds a Classifier around engine.
func New(engine *rules.Engine, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{engine: engine, logger: logger}
}

// ApplyRules classifies every event, preserving order and count.
func (c *Classifier) ApplyRules(events []core.RawEvent) []core.EnrichedEvent {
	out := make([]core.EnrichedEvent, len(events))
	for i, ev := range events {
		out[i] = c.engine.Evaluate(ev)
	}

	stats := Statistics(out)
	c.logger.Info("classification complete",
		"events", stats.TotalEvents,
		"active", stats.ActiveEvents,
		"rules", c.engine.Len(),
	)
	return out
}

// Stats summarises a classified event list.
type Stats struct {
	TotalEvents          int            `json:"total_events"`
	ActiveEvents         int            `json:"active_events"`
	PassiveEvents        int            `json:"passive_events"`
	BloomDistribution    map[string]int `json:"bloom_distribution"`
	ActivityDistribution map[string]int `json:"activity_distribution"`
}

// ActiveRatio returns the share of active events, or 0 for an empty list.
func (s Stats) ActiveRatio() float64 {
	if s.TotalEvents == 0 {
		return 0
	}
	return float64(s.ActiveEvents) / float64(s.TotalEvents)
}

// Statistics counts events by activity, Bloom level and activity type.
// ActiveEvents + PassiveEvents always equals TotalEvents.
func Statistics(events []core.EnrichedEvent) Stats {
	s := Stats{
		TotalEvents:          len(events),
		BloomDistribution:    make(map[string]int),
		ActivityDistribution: make(map[string]int),
	}
	for _, ev := range events {
		if ev.IsActive {
			s.ActiveEvents++
		}
		s.BloomDistribution[ev.BloomLevel]++
		s.ActivityDistribution[ev.ActivityType]++
	}
	s.PassiveEvents = s.TotalEvents - s.ActiveEvents
	return s
}

// BloomOnly returns the events with a Bloom level other than Unknown.
func BloomOnly(events []core.EnrichedEvent) []core.EnrichedEvent {
	out := make([]core.EnrichedEvent, 0, len(events))
	for _, ev := range events {
		if ev.BloomLevel != rules.UnknownLevel {
			out = append(out, ev)
		}
	}
	return out
}
