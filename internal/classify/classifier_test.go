package classify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(component, name string) core.RawEvent {
	return core.RawEvent{
		Time:         time.Date(2026, 1, 21, 13, 0, 32, 0, time.UTC),
		UserFullName: "Maria Souza",
		EventName:    name,
		Component:    component,
	}
}

func TestApplyRules_PreservesOrderAndCount(t *testing.T) {
	engine, err := rules.LoadEngine("")
	require.NoError(t, err)
	c := New(engine, nil)

	in := []core.RawEvent{
		raw("File", "Course module viewed"),
		raw("Forum", "Post created"),
		raw("System", "User logged in"),
	}
	out := c.ApplyRules(in)

	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i], out[i].RawEvent)
	}
	assert.Equal(t, "Study_P", out[0].ActivityType)
	assert.Equal(t, "Collab_A", out[1].ActivityType)
	assert.Equal(t, core.DefaultClassification, out[2].Classification)
}

func TestApplyRules_Empty(t *testing.T) {
	c := New(rules.NewEngine(nil), nil)
	out := c.ApplyRules(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestStatistics(t *testing.T) {
	events := []core.EnrichedEvent{
		core.Enrich(raw("a", "a"), core.Classification{ActivityType: "Study_P", BloomLevel: "Remember"}),
		core.Enrich(raw("b", "b"), core.Classification{ActivityType: "Collab_A", BloomLevel: "Create", IsActive: true}),
		core.Enrich(raw("c", "c"), core.Classification{ActivityType: "Study_P", BloomLevel: "Remember"}),
		core.Enrich(raw("d", "d"), core.DefaultClassification),
	}

	s := Statistics(events)
	assert.Equal(t, 4, s.TotalEvents)
	assert.Equal(t, 1, s.ActiveEvents)
	assert.Equal(t, 3, s.PassiveEvents)
	assert.Equal(t, s.TotalEvents, s.ActiveEvents+s.PassiveEvents)
	assert.Equal(t, map[string]int{"Remember": 2, "Create": 1, "Unknown": 1}, s.BloomDistribution)
	assert.Equal(t, map[string]int{"Study_P": 2, "Collab_A": 1, "Other": 1}, s.ActivityDistribution)
	assert.InDelta(t, 0.25, s.ActiveRatio(), 1e-9)
}

func TestStatistics_Empty(t *testing.T) {
	s := Statistics(nil)
	assert.Zero(t, s.TotalEvents)
	assert.Zero(t, s.ActiveRatio())
	assert.NotNil(t, s.BloomDistribution)
}

func TestStats_JSON(t *testing.T) {
	data, err := json.Marshal(Statistics(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"total_events": 0,
		"active_events": 0,
		"passive_events": 0,
		"bloom_distribution": {},
		"activity_distribution": {}
	}`, string(data))
}

func TestBloomOnly(t *testing.T) {
	events := []core.EnrichedEvent{
		core.Enrich(raw("a", "a"), core.DefaultClassification),
		core.Enrich(raw("b", "b"), core.Classification{ActivityType: "Prod_A", BloomLevel: "Create", IsActive: true}),
	}
	out := BloomOnly(events)
	require.Len(t, out, 1)
	assert.Equal(t, "Create", out[0].BloomLevel)
}
