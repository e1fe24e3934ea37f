package core

// error_messages.go maps technical errors to coded, user-friendly messages.
//
// Typed pipeline errors are mapped by Kind; anything else falls back to
// case-insensitive substring patterns. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Invalid input: file missing or empty
//	FILE002 - Encoding undetectable: charset confidence below threshold
//	FILE003 - Delimiter undetectable: none of , ; tab | found
//	FILE004 - Invalid CSV: fewer than two records or malformed quoting
//	FILE005 - File too large
//	FILE006 - No file provided
//	FILE007 - Wrong file type (not .csv)
//	FILE008 - Unsafe header (formula prefix or too many columns)
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Required column missing
//
// # Timestamp Errors (TS001-TS099)
//
//	TS001 - No timestamps to analyse
//	TS002 - Timestamp matches no known format
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Rule file invalid
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export failed (includes an empty result after cleaning)
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - System busy (too many jobs)
//	JOB002 - Job not found or expired
//	JOB003 - Job not finished yet
//	JOB004 - Job belongs to another API key
//	JOB005 - Processing timed out
//	JOB006 - Request cancelled
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default (ERR000)
//
// Fallback when nothing matches. Check server logs for the technical error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[Kind]UserMessage{
	KindInvalidInput: {
		Message: "The file is missing or empty",
		Action:  "Upload a Moodle log export with at least one data row",
		Code:    "FILE001",
	},
	KindEncodingUndetectable: {
		Message: "Could not detect the file's character encoding",
		Action:  "Re-export the log from Moodle or save it as UTF-8",
		Code:    "FILE002",
	},
	KindDelimiterUndetectable: {
		Message: "Could not detect the column separator",
		Action:  "Use comma, semicolon, tab or pipe separated values",
		Code:    "FILE003",
	},
	KindStructureInvalid: {
		Message: "File is not a valid CSV",
		Action:  "The file needs a header row followed by at least one data row",
		Code:    "FILE004",
	},
	KindRequiredColumnMissing: {
		Message: "A required column is missing from the log",
		Action:  "Export the log with all standard Moodle columns (time, user, event, component, context, description)",
		Code:    "COL001",
	},
	KindEmptyInput: {
		Message: "The time column has no values",
		Action:  "Check that the export contains timestamps",
		Code:    "TS001",
	},
	KindTimestampUnparseable: {
		Message: "A timestamp is in an unsupported format",
		Action:  "Use a standard Moodle export; dates like 22/01/26, 23:26:24 or 2026-01-22 23:26:24 are supported",
		Code:    "TS002",
	},
	KindRuleDefinitionInvalid: {
		Message: "The classification rule file is invalid",
		Action:  "Each rule needs id, name, priority, conditions and an action with activity_type and bloom_level",
		Code:    "RULE001",
	},
	KindExportFailed: {
		Message: "Results could not be exported",
		Action:  "Check that the log contains student events after filtering",
		Code:    "EXP001",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted for untyped errors. First match wins, so more
// specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Export a shorter date range and try again",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE006",
		},
	},
	{
		pattern: "only .csv",
		msg: UserMessage{
			Message: "Only .csv files are allowed",
			Action:  "Download the log from Moodle in CSV format",
			Code:    "FILE007",
		},
	},
	{
		pattern: "unsafe formula",
		msg: UserMessage{
			Message: "CSV header contains potentially unsafe formula characters",
			Action:  "Remove cells starting with =, +, - or @ from the header row",
			Code:    "FILE008",
		},
	},
	{
		pattern: "too many columns",
		msg: UserMessage{
			Message: "CSV has too many columns",
			Action:  "Upload the unmodified Moodle export",
			Code:    "FILE008",
		},
	},
	{
		pattern: "too many jobs",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Job not found",
			Action:  "The job may have expired. Please upload the file again",
			Code:    "JOB002",
		},
	},
	{
		pattern: "not completed",
		msg: UserMessage{
			Message: "Job has not finished yet",
			Action:  "Poll the status endpoint until the job is completed",
			Code:    "JOB003",
		},
	},
	{
		pattern: "not the job owner",
		msg: UserMessage{
			Message: "This job belongs to another API key",
			Action:  "Use the API key the file was uploaded with",
			Code:    "JOB004",
		},
	},
	{
		pattern: "invalid job id",
		msg: UserMessage{
			Message: "Invalid job ID format",
			Action:  "Use the job_id returned by the upload",
			Code:    "JOB007",
		},
	},
	{
		pattern: "timed out",
		msg: UserMessage{
			Message: "Processing timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Processing timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "JOB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no specific pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed errors are mapped by kind; other errors by pattern.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
