package core

// streaming.go provides the readers the loader stacks in front of encoding/csv
// for UTF-8 and ASCII input:
//
//   - SkipBOM: drops a leading UTF-8 byte order mark (Excel exports add one)
//   - UTF8Sanitizer: replaces invalid byte sequences with '?' on the fly
//   - NewStrictUTF8Reader: fails on the first invalid byte instead
//
// Non-UTF-8 input is transcoded by the detect package before it gets here.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// HasBOM reports whether data starts with a UTF-8 byte order mark.
func HasBOM(data []byte) bool {
	return bytes.HasPrefix(data, utf8BOM)
}

// TrimBOM removes a leading byte order mark from a decoded header cell.
func TrimBOM(s string) string {
	if len(s) >= 3 && HasBOM([]byte(s[:3])) {
		return s[3:]
	}
	return s
}

// SkipBOM returns a reader positioned after the BOM, if r starts with one.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && HasBOM(head) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer reads runes from the underlying reader and writes invalid
// bytes out as '?'. Memory use is bounded by the bufio buffer.
type UTF8Sanitizer struct {
	br *bufio.Reader

	// carry holds the tail of a rune that did not fit in the caller's buffer.
	carry []byte

	// strict turns an invalid byte into an EncodingUndetectable error.
	strict bool
	offset int64
	err    error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{br: bufio.NewReader(r)}
}

// NewStrictUTF8Reader wraps r and fails with an EncodingUndetectable error
// at the first byte that is not valid UTF-8.
func NewStrictUTF8Reader(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{br: bufio.NewReader(r), strict: true}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for n < len(p) {
		if len(s.carry) > 0 {
			c := copy(p[n:], s.carry)
			s.carry = s.carry[c:]
			n += c
			continue
		}

		r, size, err := s.br.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}

		if r == utf8.RuneError && size == 1 {
			if s.strict {
				b := byte(0)
				if err := s.br.UnreadRune(); err == nil {
					b, _ = s.br.ReadByte()
				}
				s.err = &Error{
					Kind: KindEncodingUndetectable,
					Msg:  fmt.Sprintf("invalid UTF-8 byte 0x%02x at offset %d", b, s.offset),
				}
				return n, s.err
			}
			s.offset++
			p[n] = '?'
			n++
		} else {
			var enc [utf8.UTFMax]byte
			w := utf8.EncodeRune(enc[:], r)
			c := copy(p[n:], enc[:w])
			s.offset += int64(size)
			n += c
			if c < w {
				s.carry = append(s.carry[:0], enc[c:w]...)
			}
		}

		// Don't block on the source once something is ready to hand back.
		if s.br.Buffered() == 0 {
			return n, nil
		}
	}
	return n, nil
}

// DecodeUTF8Strict strips the BOM and validates r.
func DecodeUTF8Strict(r io.Reader) io.Reader {
	return NewStrictUTF8Reader(SkipBOM(r))
}
