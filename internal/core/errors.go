package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindEncodingUndetectable
	KindDelimiterUndetectable
	KindStructureInvalid
	KindRequiredColumnMissing
	KindEmptyInput
	KindTimestampUnparseable
	KindRuleDefinitionInvalid
	KindExportFailed
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown error",
	KindInvalidInput:          "invalid input",
	KindEncodingUndetectable:  "encoding undetectable",
	KindDelimiterUndetectable: "delimiter undetectable",
	KindStructureInvalid:      "invalid csv structure",
	KindRequiredColumnMissing: "missing required column",
	KindEmptyInput:            "empty timestamp input",
	KindTimestampUnparseable:  "unparseable timestamp",
	KindRuleDefinitionInvalid: "invalid rule definition",
	KindExportFailed:          "export failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed error returned by every pipeline stage.
type Error struct {
	Kind Kind

	// Field is the canonical field or rule key involved, if any.
	Field string

	// Value is the offending raw value, if any.
	Value string

	// Msg is extra human-readable detail.
	Msg string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, ": %q", e.Value)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so the sentinels below work
// with errors.Is regardless of field or value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrEncodingUndetectable  = &Error{Kind: KindEncodingUndetectable}
	ErrDelimiterUndetectable = &Error{Kind: KindDelimiterUndetectable}
	ErrStructureInvalid      = &Error{Kind: KindStructureInvalid}
	ErrRequiredColumnMissing = &Error{Kind: KindRequiredColumnMissing}
	ErrEmptyInput            = &Error{Kind: KindEmptyInput}
	ErrTimestampUnparseable  = &Error{Kind: KindTimestampUnparseable}
	ErrRuleDefinitionInvalid = &Error{Kind: KindRuleDefinitionInvalid}
	ErrExportFailed          = &Error{Kind: KindExportFailed}
)

// Errorf builds a typed error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a typed error around a cause.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// MissingColumn reports a mandatory canonical field with no matching header.
func MissingColumn(f Field, aliases []string) *Error {
	return &Error{
		Kind:  KindRequiredColumnMissing,
		Field: string(f),
		Msg:   "expected one of: " + strings.Join(aliases, ", "),
	}
}

// UnparseableTimestamp reports a raw value no known pattern accepts.
func UnparseableTimestamp(raw string) *Error {
	return &Error{Kind: KindTimestampUnparseable, Value: raw}
}

// KindOf returns the Kind of the first *Error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
