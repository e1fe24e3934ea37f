package core

import (
	"fmt"
	"time"
)

// Field names a canonical event attribute.
type Field string

const (
	FieldTime         Field = "time"
	FieldUserFullName Field = "user_full_name"
	FieldEventName    Field = "event_name"
	FieldComponent    Field = "component"
	FieldEventContext Field = "event_context"
	FieldDescription  Field = "description"
	FieldAffectedUser Field = "affected_user"
	FieldOrigin       Field = "origin"
	FieldIPAddress    Field = "ip_address"
)

// FieldRoleID is the attribute carrying externally attached role data.
// It is not part of any CSV schema.
const FieldRoleID Field = "role_id"

// CanonicalFields lists the nine schema fields in declaration order.
// Order matters: it decides which field wins a contested header.
var CanonicalFields = []Field{
	FieldTime,
	FieldUserFullName,
	FieldEventName,
	FieldComponent,
	FieldEventContext,
	FieldDescription,
	FieldAffectedUser,
	FieldOrigin,
	FieldIPAddress,
}

// Required reports whether the field must be present in every source schema.
func (f Field) Required() bool {
	switch f {
	case FieldTime, FieldUserFullName, FieldEventName, FieldComponent, FieldEventContext, FieldDescription:
		return true
	}
	return false
}

// CSVFormat describes the detected shape of an input file.
type CSVFormat struct {
	Encoding  string `json:"encoding"`
	Delimiter rune   `json:"delimiter"`
	HasHeader bool   `json:"has_header"`
	LineCount int    `json:"line_count"`
}

// DelimiterName returns a printable name for the delimiter.
func (f CSVFormat) DelimiterName() string {
	switch f.Delimiter {
	case '\t':
		return "tab"
	case 0:
		return "none"
	}
	return string(f.Delimiter)
}

func (f CSVFormat) String() string {
	return fmt.Sprintf("encoding=%s delimiter=%s header=%t lines=%d",
		f.Encoding, f.DelimiterName(), f.HasHeader, f.LineCount)
}

// ColumnMapping records the observed header matched to each canonical field.
// An empty string means the field was not matched.
type ColumnMapping struct {
	Time         string `json:"time,omitempty"`
	UserFullName string `json:"user_full_name,omitempty"`
	EventName    string `json:"event_name,omitempty"`
	Component    string `json:"component,omitempty"`
	EventContext string `json:"event_context,omitempty"`
	Description  string `json:"description,omitempty"`
	AffectedUser string `json:"affected_user,omitempty"`
	Origin       string `json:"origin,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
}

// Column returns the observed header for a canonical field.
func (m ColumnMapping) Column(f Field) string {
	switch f {
	case FieldTime:
		return m.Time
	case FieldUserFullName:
		return m.UserFullName
	case FieldEventName:
		return m.EventName
	case FieldComponent:
		return m.Component
	case FieldEventContext:
		return m.EventContext
	case FieldDescription:
		return m.Description
	case FieldAffectedUser:
		return m.AffectedUser
	case FieldOrigin:
		return m.Origin
	case FieldIPAddress:
		return m.IPAddress
	}
	return ""
}

// With returns a copy of the mapping with f bound to column.
func (m ColumnMapping) With(f Field, column string) ColumnMapping {
	switch f {
	case FieldTime:
		m.Time = column
	case FieldUserFullName:
		m.UserFullName = column
	case FieldEventName:
		m.EventName = column
	case FieldComponent:
		m.Component = column
	case FieldEventContext:
		m.EventContext = column
	case FieldDescription:
		m.Description = column
	case FieldAffectedUser:
		m.AffectedUser = column
	case FieldOrigin:
		m.Origin = column
	case FieldIPAddress:
		m.IPAddress = column
	}
	return m
}

// RawEvent is one log row after column mapping.
// A zero Time means the timestamp was missing in the source.
type RawEvent struct {
	Time         time.Time `json:"time"`
	UserFullName string    `json:"user_full_name"`
	EventName    string    `json:"event_name"`
	Component    string    `json:"component"`
	EventContext string    `json:"event_context"`
	Description  string    `json:"description"`
	AffectedUser string    `json:"affected_user,omitempty"`
	Origin       string    `json:"origin,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`

	// RoleID is attached from an external role directory, never from the CSV.
	RoleID string `json:"role_id,omitempty"`
}

// HasTime reports whether the event carries a parsed timestamp.
func (e RawEvent) HasTime() bool {
	return !e.Time.IsZero()
}

// Value returns the value of a named field for rule evaluation.
// Mandatory text fields always yield a string; time yields a time.Time;
// optional fields that are unset and unknown names yield nil.
func (e RawEvent) Value(name string) any {
	switch Field(name) {
	case FieldTime:
		if !e.HasTime() {
			return nil
		}
		return e.Time
	case FieldUserFullName:
		return e.UserFullName
	case FieldEventName:
		return e.EventName
	case FieldComponent:
		return e.Component
	case FieldEventContext:
		return e.EventContext
	case FieldDescription:
		return e.Description
	case FieldAffectedUser:
		return optional(e.AffectedUser)
	case FieldOrigin:
		return optional(e.Origin)
	case FieldIPAddress:
		return optional(e.IPAddress)
	case FieldRoleID:
		return optional(e.RoleID)
	}
	return nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Classification is the outcome of evaluating the rule set against an event.
type Classification struct {
	ActivityType string `json:"activity_type"`
	BloomLevel   string `json:"bloom_level"`
	IsActive     bool   `json:"is_active"`
}

// DefaultClassification is applied when no rule matches.
var DefaultClassification = Classification{
	ActivityType: "Other",
	BloomLevel:   "Unknown",
	IsActive:     false,
}

// EnrichedEvent is a RawEvent with its classification attached.
type EnrichedEvent struct {
	RawEvent
	Classification
}

// Enrich attaches a classification to an event.
func Enrich(e RawEvent, c Classification) EnrichedEvent {
	return EnrichedEvent{RawEvent: e, Classification: c}
}
