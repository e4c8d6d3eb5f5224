package apperr

import (
	"fmt"
)

// Class is a user-facing error category. Opaque transport failures are
// classified into exactly one of these before anything is shown.
type Class string

const (
	ClassConnectivity Class = "CONNECTIVITY"
	ClassTimeout      Class = "TIMEOUT"
	ClassUnauthorized Class = "UNAUTHORIZED"
	ClassForbidden    Class = "FORBIDDEN"
	ClassNotFound     Class = "NOT_FOUND"
	ClassConflict     Class = "CONFLICT"
	ClassInvalidInput Class = "INVALID_INPUT"
	ClassRateLimited  Class = "RATE_LIMITED"
	ClassServer       Class = "SERVER_ERROR"
	ClassUnavailable  Class = "UNAVAILABLE"
	ClassUnknown      Class = "UNKNOWN"
)

// Error is a classified application error. UserMessage, when set, is
// short and already safe to show; otherwise the per-class default from
// UserMessage() applies.
type Error struct {
	Class       Class
	Message     string
	UserMessage string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error with no underlying cause.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Wrap classifies an existing error.
func Wrap(err error, class Class, message string) *Error {
	return &Error{Class: class, Message: message, Cause: err}
}

// WithUserMessage sets the short, human-readable message shown to users.
func (e *Error) WithUserMessage(msg string) *Error {
	e.UserMessage = msg
	return e
}

// userMessages are the default short messages per class. Raw technical
// error text never reaches the user through these.
var userMessages = map[Class]string{
	ClassConnectivity: "Connection problem. Check your network and try again.",
	ClassTimeout:      "The operation timed out. Please try again.",
	ClassUnauthorized: "Your session has expired. Please sign in again.",
	ClassForbidden:    "You don't have permission to do that.",
	ClassNotFound:     "That item could not be found.",
	ClassConflict:     "This was changed elsewhere. Refresh and try again.",
	ClassInvalidInput: "Some of the provided data is invalid.",
	ClassRateLimited:  "Too many requests. Wait a moment and try again.",
	ClassServer:       "Something went wrong on our side. Please try again.",
	ClassUnavailable:  "The service is temporarily unavailable.",
	ClassUnknown:      "Something unexpected went wrong.",
}

// UserMessage returns the short message to surface for err. A nil error
// yields the empty string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e := Classify(err)
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return userMessages[e.Class]
}

// Retryable reports whether retrying the same operation can plausibly
// succeed without user intervention.
func Retryable(err error) bool {
	switch Classify(err).Class {
	case ClassConnectivity, ClassTimeout, ClassRateLimited, ClassServer, ClassUnavailable:
		return true
	}
	return false
}
