// Package pipeline runs one Moodle log file through detection, column
// mapping, timestamp parsing, cleaning, classification and export.
//
// Stages run in sequence on whole in-memory tables. The context is checked
// between stages, so a cancelled or expired job stops at the next boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/JonMunkholm/moodlelogsmart/internal/clean"
	"github.com/JonMunkholm/moodlelogsmart/internal/columns"
	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/detect"
	"github.com/JonMunkholm/moodlelogsmart/internal/export"
	"github.com/JonMunkholm/moodlelogsmart/internal/rules"
	"github.com/JonMunkholm/moodlelogsmart/internal/table"
	"github.com/JonMunkholm/moodlelogsmart/internal/timestamp"
)

// Stage names a pipeline step as reported to progress callbacks.
type Stage string

const (
	StageDetecting   Stage = "detecting"
	StageLoading     Stage = "loading"
	StageMapping     Stage = "mapping"
	StageTimestamps  Stage = "timestamps"
	StageCleaning    Stage = "cleaning"
	StageClassifying Stage = "classifying"
	StageExporting   Stage = "exporting"
	StagePackaging   Stage = "packaging"
	StageCompleted   Stage = "completed"
)

// Percent is the progress reported when a stage starts.
func (s Stage) Percent() int {
	switch s {
	case StageDetecting:
		return 10
	case StageLoading:
		return 20
	case StageMapping:
		return 30
	case StageTimestamps:
		return 40
	case StageCleaning:
		return 60
	case StageClassifying:
		return 75
	case StageExporting:
		return 85
	case StagePackaging:
		return 95
	case StageCompleted:
		return 100
	}
	return 0
}

// ProgressFunc receives stage transitions. It must not block.
type ProgressFunc func(stage Stage, percent int)

// Config configures a Pipeline.
type Config struct {
	Clean clean.Config

	// RulesPath overrides the bundled rule file.
	RulesPath string

	// RolesFile is an optional role directory CSV.
	RolesFile string

	// XES enables the XES export next to CSV.
	XES bool
}

// Pipeline holds the immutable, per-process parts of a run: the loaded rule
// set, the role directory and the configured filters. A Pipeline is safe
// for concurrent use; each Run works on its own data.
type Pipeline struct {
	detector   *detect.Detector
	mapper     *columns.Mapper
	cleaner    *clean.Cleaner
	classifier *classify.Classifier
	roles      clean.Roles
	xes        bool
	logger     *slog.Logger
}

// New loads the rule set and role directory named in cfg.
func New(cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := rules.LoadEngine(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	logger.Info("rules loaded", "rules", engine.Len(), "path", cfg.RulesPath)

	var roles clean.Roles
	if cfg.RolesFile != "" {
		roles, err = clean.LoadRoles(cfg.RolesFile)
		if err != nil {
			return nil, fmt.Errorf("load roles: %w", err)
		}
		logger.Info("role directory loaded", "users", len(roles), "path", cfg.RolesFile)
	}

	return &Pipeline{
		detector:   detect.New(),
		mapper:     columns.NewMapper(),
		cleaner:    clean.New(cfg.Clean, logger),
		classifier: classify.New(engine, logger),
		roles:      roles,
		xes:        cfg.XES,
		logger:     logger,
	}, nil
}

// Request names the input file and where results go.
type Request struct {
	Path string

	// OutDir receives the export bundle. Empty skips export.
	OutDir string

	// ArchivePath, when set, receives a ZIP of OutDir.
	ArchivePath string
}

// Result describes a finished run.
type Result struct {
	Format          core.CSVFormat       `json:"format"`
	Mapping         core.ColumnMapping   `json:"mapping"`
	TimestampFormat string               `json:"timestamp_format,omitempty"`
	Rows            int                  `json:"rows"`
	Dropped         int                  `json:"dropped"`
	Stats           classify.Stats       `json:"stats"`
	Files           map[string]string    `json:"files,omitempty"`
	ArchivePath     string               `json:"archive_path,omitempty"`
	Duration        time.Duration        `json:"duration"`
	Events          []core.EnrichedEvent `json:"-"`
}

// Run processes req.Path end to end. progress may be nil.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	report := func(s Stage) error {
		if progress != nil {
			progress(s, s.Percent())
		}
		return ctx.Err()
	}
	logger := p.logger.With("file", filepath.Base(req.Path))

	if err := report(StageDetecting); err != nil {
		return nil, err
	}
	format, err := p.detector.Detect(req.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("format detected", "format", format.String())

	if err := report(StageLoading); err != nil {
		return nil, err
	}
	tbl, err := table.Load(req.Path, format)
	if err != nil {
		return nil, err
	}

	if err := report(StageMapping); err != nil {
		return nil, err
	}
	mapping, err := p.mapper.Map(tbl.Header)
	if err != nil {
		return nil, err
	}
	tbl.Rename(columns.RenameMap(mapping))
	logger.Info("columns mapped", "columns", len(tbl.Header), "rows", tbl.Len())

	if err := report(StageTimestamps); err != nil {
		return nil, err
	}
	times, pattern, err := parseTimes(tbl.Column(string(core.FieldTime)))
	if err != nil {
		return nil, err
	}
	events := buildEvents(tbl, times)

	if err := report(StageCleaning); err != nil {
		return nil, err
	}
	events = p.roles.Attach(events)
	cleaned := p.cleaner.Clean(events)

	if err := report(StageClassifying); err != nil {
		return nil, err
	}
	enriched := p.classifier.ApplyRules(cleaned)

	res := &Result{
		Format:          format,
		Mapping:         mapping,
		TimestampFormat: pattern,
		Rows:            tbl.Len(),
		Dropped:         tbl.Len() - len(cleaned),
		Stats:           classify.Statistics(enriched),
		Events:          enriched,
	}

	if req.OutDir != "" {
		if err := report(StageExporting); err != nil {
			return nil, err
		}
		files, err := export.WriteBundle(req.OutDir, enriched, export.Options{XES: p.xes})
		if err != nil {
			return nil, err
		}
		res.Files = files

		if req.ArchivePath != "" {
			if err := report(StagePackaging); err != nil {
				return nil, err
			}
			if err := export.Zip(req.OutDir, req.ArchivePath); err != nil {
				return nil, err
			}
			res.ArchivePath = req.ArchivePath
		}
	}

	res.Duration = time.Since(start)
	if progress != nil {
		progress(StageCompleted, StageCompleted.Percent())
	}
	logger.Info("pipeline complete",
		"rows", res.Rows,
		"events", res.Stats.TotalEvents,
		"dropped", res.Dropped,
		"duration", res.Duration,
	)
	return res, nil
}

// parseTimes parses the non-blank cells of the time column. Blank cells stay
// zero so the cleaner drops them. It returns the detected pattern name, or
// "" when values were matched one by one.
func parseTimes(col []string) ([]time.Time, string, error) {
	out := make([]time.Time, len(col))

	idx := make([]int, 0, len(col))
	values := make([]string, 0, len(col))
	for i, v := range col {
		if v = strings.TrimSpace(v); v != "" {
			idx = append(idx, i)
			values = append(values, v)
		}
	}

	pattern, err := timestamp.DetectFormat(values)
	if err != nil {
		return nil, "", err
	}
	var parsed []time.Time
	if pattern != nil {
		parsed, err = timestamp.Parse(values, pattern)
	} else {
		parsed, err = timestamp.ParseEach(values)
	}
	if err != nil {
		return nil, "", err
	}
	for j, i := range idx {
		out[i] = parsed[j]
	}

	if pattern == nil {
		return out, "", nil
	}
	return out, pattern.Name, nil
}

func buildEvents(tbl *table.Table, times []time.Time) []core.RawEvent {
	cols := make(map[core.Field][]string, len(core.CanonicalFields))
	for _, f := range core.CanonicalFields {
		cols[f] = tbl.Column(string(f))
	}
	cell := func(f core.Field, i int) string {
		if c := cols[f]; c != nil {
			return strings.TrimSpace(c[i])
		}
		return ""
	}

	events := make([]core.RawEvent, tbl.Len())
	for i := range events {
		events[i] = core.RawEvent{
			Time:         times[i],
			UserFullName: cell(core.FieldUserFullName, i),
			EventName:    cell(core.FieldEventName, i),
			Component:    cell(core.FieldComponent, i),
			EventContext: cell(core.FieldEventContext, i),
			Description:  cell(core.FieldDescription, i),
			AffectedUser: cell(core.FieldAffectedUser, i),
			Origin:       cell(core.FieldOrigin, i),
			IPAddress:    cell(core.FieldIPAddress, i),
		}
	}
	return events
}
