// # Error Codes Reference
//
// User-facing messages carry a code for support reference. Codes are
// grouped by category:
//
// # File Type Errors (FT001-FT099)
//
//	FT001 - File type not found
//	        Action: Check the file type list; it may have been deleted
//	FT002 - Operation not allowed on this file type
//	        Action: System types cannot be deleted; remove attached fields first
//	FT003 - Invalid file type input
//	        Action: Correct the highlighted field and submit again
//	FT004 - No file type accepts this file
//	        Action: Ask an administrator to enable a file type for this MIME type
//	FT005 - File type still used by uploaded files
//	        Action: Disable the type instead of deleting it
//
// # Wizard Errors (WIZ001-WIZ099)
//
//	WIZ001 - Upload session not found
//	WIZ002 - Upload already submitted
//	WIZ003 - System busy
//	WIZ004 - File too large
//	WIZ005 - No file selected
//	WIZ006 - Request cancelled
//	WIZ007 - Request timed out
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Foreign key
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Deadlock
//
// # Access (ACC001)
//
//	ACC001 - Access denied
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error
//
// Typed errors (ValidationError, ConfigurationError and the sentinels) are
// matched first. Other errors fall through to case-insensitive substring
// patterns; the first matching pattern wins.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgTypeNotFound = UserMessage{
		Message: "File type not found",
		Action:  "Check the file type list; it may have been deleted",
		Code:    "FT001",
	}
	msgConflict = UserMessage{
		Message: "This operation is not allowed in the current state",
		Action:  "Reload the page and review the item before trying again",
		Code:    "FT002",
	}
	msgValidation = UserMessage{
		Message: "The submitted values are not valid",
		Action:  "Correct the highlighted field and submit again",
		Code:    "FT003",
	}
	msgConfiguration = UserMessage{
		Message: "No file type is configured to accept this file",
		Action:  "Ask an administrator to enable a file type for this MIME type",
		Code:    "FT004",
	}
	msgAccessDenied = UserMessage{
		Message: "You are not allowed to perform this action",
		Action:  "Sign in with an account that has the required permission",
		Code:    "ACC001",
	}
)

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Specific patterns must come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "has committed files",
		msg: UserMessage{
			Message: "This file type is still used by uploaded files",
			Action:  "Disable the file type instead; it cannot be deleted while files use it",
			Code:    "FT005",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Upload session not found",
			Action:  "The upload may have expired. Please start a new upload",
			Code:    "WIZ001",
		},
	},
	{
		pattern: "already committed",
		msg: UserMessage{
			Message: "This upload was already submitted",
			Action:  "Open the file page or start a new upload",
			Code:    "WIZ002",
		},
	},
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "WIZ003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Upload a smaller file",
			Code:    "WIZ004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "WIZ005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "WIZ006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "WIZ007",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Choose a different machine name",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Reload the page; the file type may have been deleted",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("load image: %w", ErrNotFound))
//	// msg.Code == "FT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve *ValidationError
	var ce *ConfigurationError
	switch {
	case errors.As(err, &ve):
		m := msgValidation
		m.Message = ve.Error()
		return m
	case errors.As(err, &ce):
		m := msgConfiguration
		m.Message = ce.Message
		return m
	case errors.Is(err, ErrAccessDenied):
		return msgAccessDenied
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return msgTypeNotFound
	case errors.Is(err, ErrConflict):
		return msgConflict
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
