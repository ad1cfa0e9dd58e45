package core

// error_messages.go maps technical errors to user-facing messages with codes
// that users can quote to support.
//
// Known error types are matched first with errors.Is/As. Anything else falls
// through to a case-insensitive substring table, where the first match wins.
//
// # Codes
//
//	DB004-DB007     store connectivity: refused, reset, timeout, deadlock
//	VAL001          request body is not valid JSON
//	VAL002          invalid number in an edit
//	VAL003          missing field or record id in an edit
//	VAL007          total marks is zero
//	VAL008          total marks is negative
//	FILE001         file larger than the upload limit
//	FILE002         malformed CSV or workbook
//	FILE004         request carried no file
//	FILE005         file is empty
//	FILE006         file type is neither CSV nor XLSX
//	REC001          record does not exist
//	IMP001          bulk insert failed, nothing imported
//	UPL002          all import slots busy
//	UPL004-UPL005   request cancelled or timed out
//	RATE001         rate limited
//	ERR000          fallback; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or XLSX file to upload",
		Code:    "FILE004",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request could not be read",
		Action:  "Send a JSON object with student_id, student_name, total_marks and marks_obtained",
		Code:    "VAL001",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row and grade rows",
		Code:    "FILE005",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE006",
	}
	msgNotFound = UserMessage{
		Message: "Student record not found",
		Action:  "Refresh the list; the record may have been deleted",
		Code:    "REC001",
	}
	msgImportFailed = UserMessage{
		Message: "The file could not be saved and nothing was imported",
		Action:  "Please try the upload again",
		Code:    "IMP001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// validationMessages is keyed by rejection reason.
var validationMessages = map[grade.Reason]UserMessage{
	grade.ReasonInvalidNumber: {
		Message: "Marks must be numbers",
		Action:  "Enter total and obtained marks as plain numbers",
		Code:    "VAL002",
	},
	grade.ReasonMissingField: {
		Message: "Required field is missing",
		Action:  "Provide student ID, name, total marks and marks obtained",
		Code:    "VAL003",
	},
	grade.ReasonMissingID: {
		Message: "Record ID is missing",
		Action:  "Select a record to change",
		Code:    "VAL003",
	},
	grade.ReasonDivisionByZero: {
		Message: "Total marks cannot be zero",
		Action:  "Enter a total greater than zero",
		Code:    "VAL007",
	},
	grade.ReasonNegativeTotal: {
		Message: "Total marks cannot be negative",
		Action:  "Enter a total greater than zero",
		Code:    "VAL008",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that arrive without a known type, mostly
// driver errors. Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "server selection error",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try uploading a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
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

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var decodeErr *tabular.DecodeError
	var validationErr *grade.ValidationError

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrInvalidRequest):
		return msgInvalidRequest
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return msgUnsupported
	case errors.As(err, &decodeErr):
		return decodeMessage(decodeErr)
	case errors.As(err, &validationErr):
		if msg, ok := validationMessages[validationErr.Reason]; ok {
			return msg
		}
	case errors.Is(err, grade.ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, context.Canceled):
		return msgCancelled
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	if errors.Is(err, ErrImportFailed) {
		return msgImportFailed
	}
	return defaultMessage
}

func decodeMessage(e *tabular.DecodeError) UserMessage {
	if e.Reason == "empty file" {
		return msgEmptyFile
	}
	msg := "The file is not a valid CSV or XLSX file"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (problem at line %d)", msg, e.Line)
	}
	return UserMessage{
		Message: msg,
		Action:  "Check quoting and make every row match the header",
		Code:    "FILE002",
	}
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
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
