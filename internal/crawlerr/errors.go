// Package crawlerr defines the error taxonomy shared by the crawl pipeline.
package crawlerr

import (
	"errors"
	"fmt"
)

// ErrorCode represents a class of crawl failure
type ErrorCode string

const (
	CodeFetch      ErrorCode = "FETCH_ERROR"
	CodeAuth       ErrorCode = "AUTH_ERROR"
	CodeParse      ErrorCode = "PARSE_ERROR"
	CodeProjection ErrorCode = "PROJECTION_ERROR"
	CodeConfig     ErrorCode = "CONFIG_ERROR"
)

// Sentinels for errors.Is checks against a whole class
var (
	ErrFetch      = &Error{Code: CodeFetch}
	ErrAuth       = &Error{Code: CodeAuth}
	ErrParse      = &Error{Code: CodeParse}
	ErrProjection = &Error{Code: CodeProjection}
	ErrConfig     = &Error{Code: CodeConfig}
)

// Error wraps a failure with its class and the context needed to replay it
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if url, ok := e.Details["url"]; ok {
		msg += fmt.Sprintf(" (url=%v)", url)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches any *Error of the same code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error
func New(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// Fetch is shorthand for New(CodeFetch, ...)
func Fetch(message string, err error) *Error { return New(CodeFetch, message, err) }

// Auth is shorthand for New(CodeAuth, ...)
func Auth(message string, err error) *Error { return New(CodeAuth, message, err) }

// Parse is shorthand for New(CodeParse, ...)
func Parse(message string, err error) *Error { return New(CodeParse, message, err) }

// Projection is shorthand for New(CodeProjection, ...)
func Projection(message string, err error) *Error { return New(CodeProjection, message, err) }

// Config is shorthand for New(CodeConfig, ...)
func Config(message string, err error) *Error { return New(CodeConfig, message, err) }

// WithRetry marks the error as retryable
func (e *Error) WithRetry() *Error {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
