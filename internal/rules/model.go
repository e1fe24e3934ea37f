package rules

import (
	"reflect"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// Operator is a condition comparison.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// Condition tests one event field. Equals compares against Value, In
// against each of Values, and Contains looks for Value as a substring of a
// textual field.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
	Values   []any
}

// Matches evaluates the condition against an event. Unknown operators never
// match.
func (c Condition) Matches(ev core.RawEvent) bool {
	got := ev.Value(c.Field)

	switch c.Operator {
	case OpEquals:
		return equal(got, c.Value)
	case OpIn:
		for _, v := range c.Values {
			if equal(got, v) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := got.(string)
		if !ok {
			return false
		}
		sub, ok := c.Value.(string)
		return ok && strings.Contains(s, sub)
	}
	return false
}

// equal is == over interface values that refuses to compare uncomparable
// dynamic types (lists or maps from a rule file) instead of panicking.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Action is the classification a matching rule assigns.
type Action struct {
	ActivityType string
	BloomLevel   string
	IsActive     bool
}

// Classification converts the action to the event-level type.
func (a Action) Classification() core.Classification {
	return core.Classification{
		ActivityType: a.ActivityType,
		BloomLevel:   a.BloomLevel,
		IsActive:     a.IsActive,
	}
}

// Rule maps a conjunction of conditions to an action. Lower Priority values
// are evaluated first.
type Rule struct {
	ID         string
	Name       string
	Priority   int
	Conditions []Condition
	Action     Action
}

// Matches reports whether every condition holds. A rule with no conditions
// matches everything.
func (r Rule) Matches(ev core.RawEvent) bool {
	for _, c := range r.Conditions {
		if !c.Matches(ev) {
			return false
		}
	}
	return true
}

// BloomLevels are the valid levels, lowest order of thinking first.
var BloomLevels = []string{"Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create"}

// UnknownLevel marks events with no cognitive classification.
const UnknownLevel = "Unknown"
