package detect

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Charset is a charset guess with a confidence in [0, 1].
type Charset struct {
	Name       string
	Confidence float64
}

// CharsetDetector estimates the charset of a byte sample.
type CharsetDetector interface {
	Detect(sample []byte) (Charset, error)
}

// ChardetDetector is the statistical estimator backed by saintfish/chardet.
type ChardetDetector struct {
	text *chardet.Detector
}

// NewChardetDetector returns a detector for plain-text input.
func NewChardetDetector() *ChardetDetector {
	return &ChardetDetector{text: chardet.NewTextDetector()}
}

// LatinConfidence is the confidence reported for a single-byte Latin guess
// whose high bytes are almost all Latin-1 letters.
const LatinConfidence = 0.73

// Detect returns the best guess, lower-cased. Pure ASCII and BOM-prefixed
// samples are answered without running the statistical model.
//
// chardet scores the ISO-8859-1 family by n-gram hit rate over prose, which
// log rows full of dates, ids and course codes rarely reach. A Latin guess
// is raised to LatinConfidence when the sample is not UTF-8 and its high
// bytes read as Latin-1 letters.
func (c *ChardetDetector) Detect(sample []byte) (Charset, error) {
	if core.HasBOM(sample) {
		return Charset{Name: "utf-8", Confidence: 1}, nil
	}
	if isASCII(sample) {
		return Charset{Name: "ascii", Confidence: 1}, nil
	}

	res, err := c.text.DetectBest(sample)
	if err != nil {
		return Charset{}, err
	}
	guess := Charset{
		Name:       strings.ToLower(res.Charset),
		Confidence: float64(res.Confidence) / 100,
	}
	if isLatin1Family(guess.Name) && guess.Confidence < LatinConfidence &&
		!utf8.Valid(sample) && latinLetterRatio(sample) >= 0.9 {
		guess.Confidence = LatinConfidence
	}
	return guess, nil
}

func isLatin1Family(name string) bool {
	switch name {
	case "iso-8859-1", "windows-1252":
		return true
	}
	return false
}

// latinLetterRatio returns the share of bytes in 0xA0-0xFF that are letters
// in ISO-8859-1. The C1 range is skipped since windows-1252 puts quotes and
// dashes there.
func latinLetterRatio(data []byte) float64 {
	high, letters := 0, 0
	for _, b := range data {
		if b < 0xA0 {
			continue
		}
		high++
		switch {
		case b == 0xAA || b == 0xBA:
			letters++
		case b >= 0xC0 && b != 0xD7 && b != 0xF7:
			letters++
		}
	}
	if high == 0 {
		return 0
	}
	return float64(letters) / float64(high)
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// isUTF8 reports whether name needs no transcoding.
func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "ascii", "us-ascii", "":
		return true
	}
	return false
}

// Decode returns a reader yielding UTF-8 text from r, which is encoded in
// the named charset. UTF-8 and ASCII input has its BOM stripped, and the
// reader fails with an EncodingUndetectable error at the first invalid byte.
func Decode(r io.Reader, charset string) (io.Reader, error) {
	if isUTF8(charset) {
		return core.DecodeUTF8Strict(r), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, &core.Error{
			Kind:  core.KindEncodingUndetectable,
			Value: charset,
			Msg:   "unsupported charset",
			Err:   err,
		}
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
