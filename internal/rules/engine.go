// Package rules classifies events with a priority-ordered list of
// declarative rules.
//
// Rules are data: each is a list of field conditions joined by AND plus the
// action to apply. The engine sorts them once by ascending priority (stable,
// so declaration order breaks ties) and the first matching rule wins. When
// nothing matches the event is classified Other/Unknown/passive.
//
// The bundled rule file, bloom_taxonomy.yaml, maps Moodle components and
// event names in English and Portuguese to Bloom's taxonomy levels.
package rules

import (
	"cmp"
	"slices"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// Engine evaluates events against an immutable, sorted rule list.
// It is safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine copies and sorts rules.
func NewEngine(rules []Rule) *Engine {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return &Engine{rules: sorted}
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Match returns the first rule matching ev, or false if none does.
func (e *Engine) Match(ev core.RawEvent) (Rule, bool) {
	for _, r := range e.rules {
		if r.Matches(ev) {
			return r, true
		}
	}
	return Rule{}, false
}

// Classify returns the classification for ev.
func (e *Engine) Classify(ev core.RawEvent) core.Classification {
	if r, ok := e.Match(ev); ok {
		return r.Action.Classification()
	}
	return core.DefaultClassification
}

// Evaluate returns ev with its classification attached.
func (e *Engine) Evaluate(ev core.RawEvent) core.EnrichedEvent {
	return core.Enrich(ev, e.Classify(ev))
}
