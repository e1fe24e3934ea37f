// Package export renders classified events to files: delimited text, an XES
// process-mining log, a ZIP bundle of both, and optionally a Postgres table.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// TimeLayout is how timestamps are written to CSV.
const TimeLayout = "2006-01-02 15:04:05"

// Columns is the CSV header, in output order.
var Columns = []string{
	"time",
	"user_full_name",
	"event_name",
	"component",
	"event_context",
	"description",
	"affected_user",
	"origin",
	"ip_address",
	"role_id",
	"activity_type",
	"bloom_level",
	"is_active",
}

var cellReplacer = strings.NewReplacer(",", ";", "\r\n", " ", "\n", " ", "\r", " ")

// cell makes a value safe for an unquoted comma-separated field.
func cell(s string) string {
	return cellReplacer.Replace(s)
}

func record(ev core.EnrichedEvent) []string {
	ts := ""
	if ev.HasTime() {
		ts = ev.Time.Format(TimeLayout)
	}
	return []string{
		ts,
		cell(ev.UserFullName),
		cell(ev.EventName),
		cell(ev.Component),
		cell(ev.EventContext),
		cell(ev.Description),
		cell(ev.AffectedUser),
		cell(ev.Origin),
		cell(ev.IPAddress),
		cell(ev.RoleID),
		cell(ev.ActivityType),
		cell(ev.BloomLevel),
		strconv.FormatBool(ev.IsActive),
	}
}

// WriteCSV writes a header row and one row per event as plain
// comma-joined text. Commas inside values become semicolons and line breaks
// become spaces, so no field is ever quoted.
func WriteCSV(w io.Writer, events []core.EnrichedEvent) error {
	if len(events) == 0 {
		return core.Errorf(core.KindExportFailed, "no events to export")
	}

	if _, err := io.WriteString(w, strings.Join(Columns, ",")+"\n"); err != nil {
		return core.WrapError(core.KindExportFailed, "write header", err)
	}
	for _, ev := range events {
		if _, err := io.WriteString(w, strings.Join(record(ev), ",")+"\n"); err != nil {
			return core.WrapError(core.KindExportFailed, "write row", err)
		}
	}
	return nil
}

// WriteCSVFile writes events to path, creating parent directories.
func WriteCSVFile(path string, events []core.EnrichedEvent) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteCSV(w, events)
	})
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.WrapError(core.KindExportFailed, "create directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return core.WrapError(core.KindExportFailed, "create file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = core.WrapError(core.KindExportFailed, "close file", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return core.WrapError(core.KindExportFailed, fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}
