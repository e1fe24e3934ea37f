package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/clean"
	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, nil)
	require.NoError(t, err)
	return p
}

func TestRun_English(t *testing.T) {
	p := newPipeline(t, Config{Clean: clean.DefaultConfig()})

	var stages []Stage
	var percents []int
	progress := func(s Stage, pct int) {
		stages = append(stages, s)
		percents = append(percents, pct)
	}

	out := t.TempDir()
	res, err := p.Run(context.Background(), Request{
		Path:        filepath.Join("testdata", "moodle_en.csv"),
		OutDir:      filepath.Join(out, "bundle"),
		ArchivePath: filepath.Join(out, "results.zip"),
	}, progress)
	require.NoError(t, err)

	assert.Equal(t, ',', res.Format.Delimiter)
	assert.Equal(t, "utf-8", res.Format.Encoding)
	assert.Equal(t, "Time", res.Mapping.Time)
	assert.Equal(t, "IP address", res.Mapping.IPAddress)
	assert.Equal(t, "dd/mm/yy, HH:MM:SS", res.TimestampFormat)

	assert.Equal(t, 6, res.Rows)
	assert.Equal(t, 2, res.Dropped, "one admin event and one blank timestamp")
	require.Len(t, res.Events, 4)

	first := res.Events[0]
	assert.Equal(t, time.Date(2026, 1, 22, 23, 26, 24, 0, time.UTC), first.Time)
	assert.Equal(t, "João Silva", first.UserFullName)
	assert.Equal(t, core.Classification{ActivityType: "Study_P", BloomLevel: "Remember"}, first.Classification)
	assert.Equal(t, core.Classification{ActivityType: "Collab_A", BloomLevel: "Create", IsActive: true}, res.Events[1].Classification)
	assert.Equal(t, core.DefaultClassification, res.Events[3].Classification)

	assert.Equal(t, 4, res.Stats.TotalEvents)
	assert.Equal(t, 2, res.Stats.ActiveEvents)
	assert.Equal(t, res.Stats.TotalEvents, res.Stats.ActiveEvents+res.Stats.PassiveEvents)

	assert.Contains(t, res.Files, export.EnrichedCSV)
	assert.Contains(t, res.Files, export.BloomOnlyCSV)
	assert.FileExists(t, res.ArchivePath)

	assert.Equal(t, []Stage{
		StageDetecting, StageLoading, StageMapping, StageTimestamps, StageCleaning,
		StageClassifying, StageExporting, StagePackaging, StageCompleted,
	}, stages)
	assert.IsIncreasing(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestRun_PortugueseSemicolon(t *testing.T) {
	p := newPipeline(t, Config{})

	res, err := p.Run(context.Background(), Request{Path: filepath.Join("testdata", "moodle_pt.csv")}, nil)
	require.NoError(t, err)

	assert.Equal(t, ';', res.Format.Delimiter)
	assert.Equal(t, "Hora", res.Mapping.Time)
	assert.Equal(t, "Nome completo", res.Mapping.UserFullName)
	assert.Equal(t, "Endereço IP", res.Mapping.IPAddress)
	assert.Nil(t, res.Files, "no output directory means no export")

	require.Len(t, res.Events, 3)
	assert.Equal(t, "Study_P", res.Events[0].ActivityType)
	assert.Equal(t, "Collab_A", res.Events[1].ActivityType)
	assert.Equal(t, "Evaluate", res.Events[2].BloomLevel)
}

func TestRun_RoleDirectory(t *testing.T) {
	p := newPipeline(t, Config{RolesFile: filepath.Join("testdata", "roles.csv")})

	res, err := p.Run(context.Background(), Request{Path: filepath.Join("testdata", "moodle_en.csv")}, nil)
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	for _, ev := range res.Events {
		assert.Equal(t, "João Silva", ev.UserFullName)
		assert.Equal(t, "5", ev.RoleID)
	}
}

func TestRun_XES(t *testing.T) {
	p := newPipeline(t, Config{XES: true})

	res, err := p.Run(context.Background(), Request{
		Path:   filepath.Join("testdata", "moodle_en.csv"),
		OutDir: t.TempDir(),
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Files, export.EnrichedXES)
	assert.Empty(t, res.ArchivePath)
}

func TestRun_Errors(t *testing.T) {
	p := newPipeline(t, Config{})

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.csv"), core.ErrInvalidInput},
		{"empty file", empty, core.ErrInvalidInput},
		{"missing columns", filepath.Join("testdata", "missing_columns.csv"), core.ErrRequiredColumnMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), Request{Path: tt.path}, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_MissingColumnNamesField(t *testing.T) {
	p := newPipeline(t, Config{})

	_, err := p.Run(context.Background(), Request{Path: filepath.Join("testdata", "missing_columns.csv")}, nil)
	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "time", cerr.Field)
}

func TestRun_Cancelled(t *testing.T) {
	p := newPipeline(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{Path: filepath.Join("testdata", "moodle_en.csv")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NothingLeftToExport(t *testing.T) {
	p := newPipeline(t, Config{Clean: clean.Config{NonStudentEvents: []string{
		"Course module viewed", "Post created", "Quiz attempt submitted",
		"Course updated", "Course viewed", "User logged in",
	}}})

	_, err := p.Run(context.Background(), Request{
		Path:   filepath.Join("testdata", "moodle_en.csv"),
		OutDir: t.TempDir(),
	}, nil)
	assert.ErrorIs(t, err, core.ErrExportFailed)
}

func TestNew_BadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o600))

	_, err := New(Config{RulesPath: path}, nil)
	assert.ErrorIs(t, err, core.ErrRuleDefinitionInvalid)
}

func TestParseTimes_KeepsBlanksZero(t *testing.T) {
	times, name, err := parseTimes([]string{"2026-01-22 10:00:00", "  ", "2026-01-23 11:30:00"})
	require.NoError(t, err)
	assert.Equal(t, "yyyy-mm-dd HH:MM:SS", name)
	assert.True(t, times[1].IsZero())
	assert.Equal(t, 23, times[2].Day())

	_, _, err = parseTimes([]string{"", " "})
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestParseTimes_FallbackDetectsOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	times, name, err := parseTimes([]string{"22/01/26, 23:26:24", "2024-08-22 13:43:23", "22 Aug 2024 13:43:23"})
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, 2026, times[0].Year())
	assert.Equal(t, 1, strings.Count(buf.String(), "no timestamp format cleared threshold"))
}

func TestRun_LateNonASCIIRowIsNotCorrupted(t *testing.T) {
	var b strings.Builder
	b.WriteString("Time,User full name,Affected user,Event context,Component,Event name,Description,Origin,IP address\n")
	for b.Len() < 12*1024 {
		b.WriteString("22/01/26, 10:00:00,Ana Lima,-,File: Intro,File,Course module viewed,Viewed.,web,10.0.0.9\n")
	}
	body := append([]byte(b.String()), []byte("22/01/26, 10:05:00,Jo\xe3o,-,F\xf3rum: D\xfavidas,F\xf3rum,Post criado,Criou.,web,10.0.0.9\n")...)
	path := filepath.Join(t.TempDir(), "late.csv")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	res, err := newPipeline(t, Config{}).Run(context.Background(), Request{Path: path}, nil)
	if err != nil {
		assert.ErrorIs(t, err, core.ErrEncodingUndetectable)
		return
	}

	assert.NotEqual(t, "ascii", res.Format.Encoding)
	last := res.Events[len(res.Events)-1]
	assert.Equal(t, "João", last.UserFullName)
	assert.Equal(t, "Fórum", last.Component)
	assert.Equal(t, core.Classification{ActivityType: "Collab_A", BloomLevel: "Create", IsActive: true}, last.Classification)
}
