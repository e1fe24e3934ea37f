// Package columns maps the header names of a Moodle log export onto the
// canonical event fields.
//
// Matching runs in two passes over the fields in declaration order. The
// exact pass compares headers and aliases case-insensitively after NFC
// normalization. The fuzzy pass then scores every unclaimed header against
// the aliases of each still-unmatched field and takes the best pair at or
// above the threshold. A header is claimed by at most one field, so an
// earlier-declared field always wins a contested header.
package columns

import (
	"log/slog"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum fuzzy score accepted.
const DefaultThreshold = 80

// Mapper matches observed headers to canonical fields.
type Mapper struct {
	similarity SimilarityFunc
	threshold  float64
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithSimilarity replaces Ratio as the fuzzy scorer.
func WithSimilarity(fn SimilarityFunc) Option {
	return func(m *Mapper) { m.similarity = fn }
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) Option {
	return func(m *Mapper) { m.threshold = t }
}

// NewMapper returns a Mapper using Ratio and DefaultThreshold.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{similarity: Ratio, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map returns the mapping for headers using the default Mapper.
func Map(headers []string) (core.ColumnMapping, error) {
	return NewMapper().Map(headers)
}

// Map matches headers against the alias tables. It fails with a
// RequiredColumnMissing error naming the first mandatory field, in
// declaration order, that found no header.
func (m *Mapper) Map(headers []string) (core.ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalize(h)
	}

	var mapping core.ColumnMapping
	claimed := make([]bool, len(headers))

	for _, f := range core.CanonicalFields {
		if idx := m.exact(normalized, claimed, f); idx >= 0 {
			claimed[idx] = true
			mapping = mapping.With(f, headers[idx])
		}
	}

	for _, f := range core.CanonicalFields {
		if mapping.Column(f) != "" {
			continue
		}
		idx, score := m.fuzzy(normalized, claimed, f)
		if idx < 0 {
			continue
		}
		claimed[idx] = true
		mapping = mapping.With(f, headers[idx])
		slog.Debug("fuzzy column match",
			"field", f,
			"header", headers[idx],
			"score", score,
		)
	}

	for _, f := range core.CanonicalFields {
		if f.Required() && mapping.Column(f) == "" {
			return core.ColumnMapping{}, core.MissingColumn(f, aliases[f])
		}
	}
	return mapping, nil
}

// exact returns the first unclaimed header equal to an alias of f, trying
// aliases in table order.
func (m *Mapper) exact(headers []string, claimed []bool, f core.Field) int {
	for _, alias := range aliases[f] {
		alias = normalize(alias)
		for i, h := range headers {
			if !claimed[i] && strings.EqualFold(h, alias) {
				return i
			}
		}
	}
	return -1
}

// fuzzy returns the unclaimed header with the highest score against any
// alias of f. Only a strictly higher score replaces the current best, so
// earlier aliases and headers win ties.
func (m *Mapper) fuzzy(headers []string, claimed []bool, f core.Field) (int, float64) {
	best, bestScore := -1, 0.0
	for _, alias := range aliases[f] {
		alias = strings.ToLower(normalize(alias))
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			score := m.similarity(strings.ToLower(h), alias)
			if score >= m.threshold && score > bestScore {
				best, bestScore = i, score
			}
		}
	}
	return best, bestScore
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// RenameMap turns a mapping into observed header -> canonical field name,
// ready for table.Rename. Unmatched fields are omitted.
func RenameMap(m core.ColumnMapping) map[string]string {
	renames := make(map[string]string, len(core.CanonicalFields))
	for _, f := range core.CanonicalFields {
		if col := m.Column(f); col != "" {
			renames[col] = string(f)
		}
	}
	return renames
}
