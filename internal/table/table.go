// Package table loads a detected CSV file into memory as a header plus rows
// of strings, and offers the column-level operations the pipeline needs.
package table

import (
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/detect"
)

// Table is an in-memory CSV. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Load reads the file at path using a previously detected format.
func Load(path string, format core.CSVFormat) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.KindInvalidInput, path, err)
	}
	defer f.Close()

	return Read(f, format)
}

// Read parses r, which must be encoded as format.Encoding.
// Short rows are padded with empty cells and long rows are truncated.
func Read(r io.Reader, format core.CSVFormat) (*Table, error) {
	text, err := detect.Decode(r, format.Encoding)
	if err != nil {
		return nil, err
	}

	delim := format.Delimiter
	if delim == 0 {
		delim = ','
	}

	records, err := detect.NewCSVReader(text, delim).ReadAll()
	if err != nil {
		return nil, detect.StructureError("parse", err)
	}
	if len(records) == 0 {
		return nil, core.Errorf(core.KindStructureInvalid, "no records")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(core.TrimBOM(h))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, fit(rec, len(header)))
	}

	return &Table{Header: header, Rows: rows}, nil
}

func fit(rec []string, n int) []string {
	if len(rec) == n {
		return rec
	}
	out := make([]string, n)
	copy(out, rec)
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells, or nil if absent.
func (t *Table) Column(name string) []string {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	col := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col
}

// Rename replaces header names found in renames (observed -> new name).
// Headers not in the map are left unchanged.
func (t *Table) Rename(renames map[string]string) {
	for i, h := range t.Header {
		if to, ok := renames[h]; ok {
			t.Header[i] = to
		}
	}
}
