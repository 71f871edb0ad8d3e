// Package core provides the business logic for automation record import and sync.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: Invalid date format detected
//	         Patterns: "invalid date format"
//
//	VAL002 - Invalid number: Invalid number format detected
//	         Patterns: "invalid number format"
//
//	VAL003 - Required field: Required field is empty
//	         Patterns: "is required"
//
//	VAL004 - Unacknowledged errors: The file has validation errors or duplicates
//	         Patterns: "must be acknowledged"
//
//	VAL005 - Duplicate keys: The file repeats an AIR ID
//	         Patterns: "duplicate air_id"
//
//	VAL006 - Invalid filter: A filter or sort parameter is malformed
//	         Patterns: "invalid filter", "invalid sort"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Patterns: "parse csv"
//
//	FILE003 - Invalid spreadsheet: File is not a readable workbook
//	          Patterns: "parse spreadsheet"
//
//	FILE004 - Invalid JSON: File is not a JSON array of objects
//	          Patterns: "parse json"
//
//	FILE005 - No file: No file was selected
//	          Patterns: "no file provided"
//
//	FILE006 - Unsupported format: Only CSV, XLSX and JSON are accepted
//	          Patterns: "unsupported file format"
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Session expired: Preview session not found
//	          Patterns: "session not found"
//
//	SYNC002 - Run not found: Sync run not found
//	          Patterns: "run not found"
//
//	SYNC003 - Confirmation required: High-risk sync needs explicit confirmation
//	          Patterns: "confirmation required"
//
//	SYNC004 - System busy: Another sync is running
//	          Patterns: "too many sync runs"
//
//	SYNC005 - Already executed: The preview was already executed
//	          Patterns: "already executed"
//
//	SYNC006 - Request cancelled: Request was cancelled
//	          Patterns: "context canceled"
//
//	SYNC007 - Request timeout: Request timed out
//	          Patterns: "context deadline exceeded"
//
// # Backend Errors (BE001-BE099)
//
//	BE001 - Backend unreachable: Unable to connect to the automation backend
//	        Patterns: "connection refused", "no such host"
//
//	BE002 - Backend timeout: The automation backend did not respond in time
//	        Patterns: "timeout"
//
//	BE003 - Record not found: The automation does not exist
//	        Patterns: "not found"
//
//	BE004 - Backend error: The automation backend rejected the request
//	        Patterns: "backend returned"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones ("session not found" before "not found").
package core

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

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation Errors (VAL001-VAL008)
	// =========================================================================
	{
		pattern: "invalid date format",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number format",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain numbers without units",
			Code:    "VAL002",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure AIR ID, Name and Type have values on every row",
			Code:    "VAL003",
		},
	},
	{
		pattern: "must be acknowledged",
		msg: UserMessage{
			Message: "The file has validation errors or duplicate AIR IDs",
			Action:  "Review the listed problems and confirm to continue without those rows",
			Code:    "VAL004",
		},
	},
	{
		pattern: "duplicate air_id",
		msg: UserMessage{
			Message: "The file repeats an AIR ID",
			Action:  "Keep one row per AIR ID and upload again",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid filter",
		msg: UserMessage{
			Message: "A filter parameter is malformed",
			Action:  "Check the filter column and operator",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid sort",
		msg: UserMessage{
			Message: "A filter parameter is malformed",
			Action:  "Check the sort column and direction",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid sync mode",
		msg: UserMessage{
			Message: "Unknown sync mode",
			Action:  "Use mode=import to add and update, or mode=sync to also delete",
			Code:    "VAL008",
		},
	},
	{
		pattern: "invalid record",
		msg: UserMessage{
			Message: "The record could not be read",
			Action:  "Send a JSON object using the canonical field names",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "parse spreadsheet",
		msg: UserMessage{
			Message: "File is not a readable workbook",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "parse json",
		msg: UserMessage{
			Message: "File is not a JSON array of objects",
			Action:  "Export the records as a JSON array and try again",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV, XLSX or JSON file to upload",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Upload a .csv, .xlsx or .json file",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Sync Errors (SYNC001-SYNC007)
	// =========================================================================
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Preview session not found",
			Action:  "The preview may have expired. Please upload the file again",
			Code:    "SYNC001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Sync run not found",
			Action:  "Check the run history for its result",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "confirmation required",
		msg: UserMessage{
			Message: "This sync deletes every record",
			Action:  "Confirm explicitly to continue",
			Code:    "SYNC003",
		},
	},
	{
		pattern: "too many sync runs",
		msg: UserMessage{
			Message: "Another sync is running",
			Action:  "Please wait for it to finish and try again",
			Code:    "SYNC004",
		},
	},
	{
		pattern: "already executed",
		msg: UserMessage{
			Message: "This preview was already executed",
			Action:  "Upload the file again to plan a new sync",
			Code:    "SYNC005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYNC006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again or check your connection",
			Code:    "SYNC007",
		},
	},

	// =========================================================================
	// Backend Errors (BE001-BE004)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the automation backend",
			Action:  "Please try again in a few moments",
			Code:    "BE001",
		},
	},
	{
		pattern: "no such host",
		msg: UserMessage{
			Message: "Unable to connect to the automation backend",
			Action:  "Check BACKEND_URL",
			Code:    "BE001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The automation backend did not respond in time",
			Action:  "Please try again later",
			Code:    "BE002",
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "The automation does not exist",
			Action:  "Refresh the list and try again",
			Code:    "BE003",
		},
	},
	{
		pattern: "backend returned",
		msg: UserMessage{
			Message: "The automation backend rejected the request",
			Action:  "Check the submitted values and try again",
			Code:    "BE004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
