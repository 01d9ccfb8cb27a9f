// Package booking implements the calendar-facing tool operations behind
// the AI's structured function calls.
package booking

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Tool result error codes. These are part of the tool-call contract and
// must not be renamed.
const (
	CodeInvalidArguments = "invalid_arguments"
	CodeUnknownTool      = "unknown_tool"
	CodeNotConfigured    = "booking_not_configured"
	CodeBookingError     = "booking_error"
)

// Error is a typed tool failure. It serializes into the tool result as
// {"error": {"code": ..., "message": ...}}.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// configMarkers flag credential problems inside otherwise opaque error
// text. Kept as a fallback for errors the API does not structure.
var configMarkers = []string{"invalid_grant", "invalid_client", "missing"}

// Classify folds an arbitrary calendar failure into the two-kind
// taxonomy: configuration problems versus everything else. Structured
// API codes win over text matching.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return NewError(CodeNotConfigured, "calendar is not configured")
	}

	text := strings.ToLower(err.Error())
	for _, marker := range configMarkers {
		if strings.Contains(text, marker) {
			return NewError(CodeNotConfigured, "calendar is not configured")
		}
	}
	return NewError(CodeBookingError, "the booking could not be completed")
}
