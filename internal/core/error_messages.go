package core

// error_messages.go maps technical errors to messages a person dropping a
// file can act on. Each message carries a code for support reference.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large         Patterns: "file too large"
//	FILE002 - Invalid CSV            Patterns: "invalid csv"
//	FILE003 - Empty file             Patterns: "csv file is empty"
//	FILE004 - No file                Patterns: "no file provided"
//	FILE005 - Not a CSV              Patterns: "not a csv"
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Sync in progress       Patterns: "sync already in progress"
//	SYNC002 - Nothing loaded         Patterns: "no file loaded"
//	SYNC003 - Engine not ready       Patterns: "sync engine not ready"
//	SYNC004 - Item vanished          Patterns: "no remote item for key"
//	SYNC005 - Run not found          Patterns: "run not found"
//
// # Remote API Errors (API001-API099)
//
//	API001 - Unauthorized            Patterns: "unauthorized"
//	API002 - Rate limited            Patterns: "rate limit"
//	API003 - Complexity budget       Patterns: "complexity" (checked before "rate limit")
//	API004 - Board not found         Patterns: "board not found"
//	API005 - Invalid column value    Patterns: "columnvalueexception", "invalid value"
//	API006 - Remote unreachable      Patterns: "connection refused", "no such host"
//
// # Request Errors (UPL001-UPL099)
//
//	UPL004 - Request cancelled       Patterns: "context canceled"
//	UPL005 - Request timeout         Patterns: "context deadline exceeded", "timeout"
//
// # Default Error (ERR000)
//
// Patterns match case-insensitively with strings.Contains and the first
// match wins, so specific patterns precede general ones. For ERR000 check
// the logs for the original error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure every line has the same number of comma-separated fields", "FILE002"}},
	{"csv file is empty", UserMessage{"The file has no content", "Drop a CSV with a header line and data rows", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Click or drag & drop a CSV file", "FILE004"}},
	{"not a csv", UserMessage{"Only .csv files are accepted", "Export the sheet as CSV and try again", "FILE005"}},

	// Sync lifecycle
	{"sync already in progress", UserMessage{"A sync is already running", "Wait for it to finish before starting another", "SYNC001"}},
	{"no file loaded", UserMessage{"There is nothing to sync yet", "Drop a CSV file first", "SYNC002"}},
	{"sync engine not ready", UserMessage{"The board is still loading", "Try again in a moment", "SYNC003"}},
	{"no remote item for key", UserMessage{"The matching board item no longer exists", "Drop the file again to recreate it", "SYNC004"}},
	{"run not found", UserMessage{"Sync run not found", "Check the run id or pick one from the history", "SYNC005"}},

	// Remote API
	{"unauthorized", UserMessage{"The board API rejected the credentials", "Check MONDAY_API_TOKEN", "API001"}},
	{"complexity", UserMessage{"The board API query budget is exhausted", "Wait a minute before trying again", "API003"}},
	{"rate limit", UserMessage{"The board API is throttling requests", "Wait a minute before trying again", "API002"}},
	{"board not found", UserMessage{"The configured board does not exist", "Check BOARD_ID", "API004"}},
	{"columnvalueexception", UserMessage{"A value does not fit its board column", "Download failed rows and fix the highlighted values", "API005"}},
	{"invalid value", UserMessage{"A value does not fit its board column", "Download failed rows and fix the highlighted values", "API005"}},
	{"connection refused", UserMessage{"Unable to reach the board API", "Check network access and try again", "API006"}},
	{"no such host", UserMessage{"Unable to reach the board API", "Check network access and try again", "API006"}},

	// Request
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try again or raise MONDAY_TIMEOUT", "UPL005"}},
	{"timeout", UserMessage{"Request timed out", "Try again or raise MONDAY_TIMEOUT", "UPL005"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message, falling
// back to ERR000.
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
