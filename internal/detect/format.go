// Package detect works out how a Moodle log export is encoded and delimited
// before anything tries to parse it.
//
// Detection is deterministic for a given file: the charset is estimated from
// the first 10 KB, the delimiter from the first 1 KB of decoded text, and the
// structure from a full pass of the CSV reader.
package detect

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

const (
	// EncodingSampleSize is how many raw bytes feed the charset estimator.
	EncodingSampleSize = 10 * 1024

	// DelimiterSampleSize is how many decoded characters are scanned for delimiters.
	DelimiterSampleSize = 1024

	// MinConfidence is the lowest charset confidence accepted.
	MinConfidence = 0.70
)

// Delimiters are the candidate separators, in tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

// Detector inspects files and reports their CSVFormat.
type Detector struct {
	charset       CharsetDetector
	minConfidence float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithCharsetDetector replaces the chardet-backed estimator.
func WithCharsetDetector(cd CharsetDetector) Option {
	return func(d *Detector) { d.charset = cd }
}

// WithMinConfidence overrides MinConfidence.
func WithMinConfidence(c float64) Option {
	return func(d *Detector) { d.minConfidence = c }
}

// New returns a Detector using chardet and the default confidence threshold.
func New(opts ...Option) *Detector {
	d := &Detector{
		charset:       NewChardetDetector(),
		minConfidence: MinConfidence,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the encoding, delimiter and shape of the CSV at path.
func (d *Detector) Detect(path string) (core.CSVFormat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.CSVFormat{}, core.Errorf(core.KindInvalidInput, "file not found: %s", path)
		}
		return core.CSVFormat{}, core.WrapError(core.KindInvalidInput, path, err)
	}
	if info.IsDir() {
		return core.CSVFormat{}, core.Errorf(core.KindInvalidInput, "not a file: %s", path)
	}
	if info.Size() == 0 {
		return core.CSVFormat{}, core.Errorf(core.KindInvalidInput, "file is empty: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return core.CSVFormat{}, core.WrapError(core.KindInvalidInput, path, err)
	}
	defer f.Close()

	sample := make([]byte, EncodingSampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return core.CSVFormat{}, core.WrapError(core.KindInvalidInput, "read sample", err)
	}

	encoding, err := d.DetectEncoding(sample[:n])
	if err != nil {
		return core.CSVFormat{}, err
	}

	// An ASCII head says nothing about the rest of the file; estimate again
	// from the first non-ASCII byte, if there is one.
	if encoding == "ascii" && n == EncodingSampleSize {
		tail, err := nonASCIISample(f)
		if err != nil {
			return core.CSVFormat{}, core.WrapError(core.KindInvalidInput, "read sample", err)
		}
		if len(tail) > 0 {
			if encoding, err = d.DetectEncoding(tail); err != nil {
				return core.CSVFormat{}, err
			}
			slog.Debug("non-ascii content after sample", "encoding", encoding)
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return core.CSVFormat{}, core.WrapError(core.KindInvalidInput, "rewind", err)
	}
	text, err := Decode(f, encoding)
	if err != nil {
		return core.CSVFormat{}, err
	}

	// The delimiter sample and the structure pass share one decoded stream.
	br := bufio.NewReader(text)
	head, err := readRunes(br, DelimiterSampleSize)
	if err != nil {
		return core.CSVFormat{}, core.WrapError(core.KindEncodingUndetectable, encoding, err)
	}
	delim, err := DetectDelimiter(head)
	if err != nil {
		return core.CSVFormat{}, err
	}

	header, records, err := CountRecords(io.MultiReader(strings.NewReader(head), br), delim)
	if err != nil {
		return core.CSVFormat{}, err
	}

	return core.CSVFormat{
		Encoding:  encoding,
		Delimiter: delim,
		HasHeader: len(header) > 0,
		LineCount: records,
	}, nil
}

// DetectEncoding runs the charset estimator over sample and applies the
// confidence threshold.
func (d *Detector) DetectEncoding(sample []byte) (string, error) {
	guess, err := d.charset.Detect(sample)
	if err != nil {
		return "", core.WrapError(core.KindEncodingUndetectable, "charset estimation failed", err)
	}
	if guess.Name == "" || guess.Confidence < d.minConfidence {
		return "", &core.Error{
			Kind:  core.KindEncodingUndetectable,
			Value: guess.Name,
			Msg:   fmt.Sprintf("confidence %.2f below %.2f", guess.Confidence, d.minConfidence),
		}
	}
	return guess.Name, nil
}

// DetectDelimiter picks the candidate occurring most often in text.
// Ties go to the candidate listed first in Delimiters.
func DetectDelimiter(text string) (rune, error) {
	counts := make(map[rune]int, len(Delimiters))
	for _, r := range text {
		counts[r]++
	}

	best, bestCount := rune(0), 0
	for _, c := range Delimiters {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	if bestCount == 0 {
		return 0, core.Errorf(core.KindDelimiterUndetectable, "none of , ; tab | found in the first %d characters", DelimiterSampleSize)
	}
	return best, nil
}

// CountRecords parses r fully and returns the header record and the total
// number of records, header included. Fewer than two records is an error.
func CountRecords(r io.Reader, delim rune) ([]string, int, error) {
	cr := NewCSVReader(r, delim)
	cr.ReuseRecord = true

	var header []string
	count := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, StructureError(fmt.Sprintf("record %d", count+1), err)
		}
		if count == 0 {
			header = append([]string(nil), rec...)
		}
		count++
	}

	switch {
	case count == 0:
		return nil, 0, core.Errorf(core.KindStructureInvalid, "no records")
	case count < 2:
		return nil, count, core.Errorf(core.KindStructureInvalid, "header row needs at least one data row")
	}
	return header, count, nil
}

// StructureError wraps a CSV read failure as StructureInvalid unless the
// cause is already typed, such as an invalid byte from the decoder.
func StructureError(msg string, err error) error {
	var typed *core.Error
	if errors.As(err, &typed) {
		return err
	}
	return core.WrapError(core.KindStructureInvalid, msg, err)
}

// nonASCIISample reads on from r until the first byte above 0x7F and
// returns up to EncodingSampleSize bytes starting there. It returns nil
// when the rest of r is ASCII.
func nonASCIISample(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if b < 0x80 {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return nil, err
		}
		sample := make([]byte, EncodingSampleSize)
		n, err := io.ReadFull(br, sample)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return sample[:n], nil
	}
}

// NewCSVReader returns a csv.Reader configured the way Moodle exports need:
// ragged rows and stray quotes are tolerated.
func NewCSVReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func readRunes(br *bufio.Reader, n int) (string, error) {
	buf := make([]rune, 0, n)
	for len(buf) < n {
		r, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		buf = append(buf, r)
	}
	return string(buf), nil
}
