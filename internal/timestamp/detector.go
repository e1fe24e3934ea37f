// Package timestamp infers which known format a column of timestamps uses
// and parses the column.
package timestamp

import (
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

const (
	// SampleSize caps how many non-blank values detection looks at.
	SampleSize = 100

	// MinSuccessRate must be exceeded, not met, for a pattern to be chosen.
	MinSuccessRate = 0.9
)

// DetectFormat returns the first known pattern that parses more than 90% of
// the first SampleSize non-blank samples. It returns nil with no error when
// no pattern qualifies; callers then fall back to per-value matching.
func DetectFormat(samples []string) (*Pattern, error) {
	if len(samples) == 0 {
		return nil, core.Errorf(core.KindEmptyInput, "no timestamps to analyse")
	}

	sample := make([]string, 0, min(len(samples), SampleSize))
	for _, s := range samples {
		if s = strings.TrimSpace(s); s != "" {
			sample = append(sample, s)
			if len(sample) == SampleSize {
				break
			}
		}
	}
	if len(sample) == 0 {
		return nil, core.Errorf(core.KindEmptyInput, "all %d timestamps are blank", len(samples))
	}

	for _, p := range Known {
		if successRate(p, sample) > MinSuccessRate {
			slog.Info("timestamp format detected", "format", p.Name, "sampled", len(sample))
			return p, nil
		}
	}

	slog.Warn("no timestamp format cleared threshold, matching per value", "sampled", len(sample))
	return nil, nil
}

func successRate(p *Pattern, sample []string) float64 {
	ok := 0
	for _, s := range sample {
		if p.Matches(s) {
			ok++
		}
	}
	return float64(ok) / float64(len(sample))
}

// Parse converts every value to a time. With a nil pattern the format is
// detected first; if detection finds none, the values go through ParseEach.
// Any value that cannot be parsed fails the call with a TimestampUnparseable
// error carrying that value.
func Parse(values []string, pattern *Pattern) ([]time.Time, error) {
	if pattern == nil {
		detected, err := DetectFormat(values)
		if err != nil {
			return nil, err
		}
		if detected == nil {
			return ParseEach(values)
		}
		pattern = detected
	}

	out := make([]time.Time, len(values))
	for i, v := range values {
		t, err := pattern.Parse(v)
		if err != nil {
			return nil, core.UnparseableTimestamp(v)
		}
		out[i] = t
	}
	return out, nil
}

// ParseEach tries every known pattern against each value independently,
// without running detection.
func ParseEach(values []string) ([]time.Time, error) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		t, _, err := ParseAny(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// ParseAny tries every known pattern in order and returns the first success.
func ParseAny(v string) (time.Time, *Pattern, error) {
	for _, p := range Known {
		if t, err := p.Parse(v); err == nil {
			return t, p, nil
		}
	}
	return time.Time{}, nil, core.UnparseableTimestamp(v)
}
