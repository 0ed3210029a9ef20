// Package errors provides error handling for Butler.
package errors

import (
	"errors"
	"strings"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for handling decisions.
type Category int

const (
	// CategoryConnectivity errors mean the Google account is not linked;
	// resolving them requires user action, not a retry.
	CategoryConnectivity Category = iota

	// CategoryPlanning errors mean the reasoning service returned output
	// that could not be parsed as a plan.
	CategoryPlanning

	// CategoryValidation errors are caught before a side-effecting call
	// (e.g. a malformed recipient address).
	CategoryValidation

	// CategoryCollaborator errors come from the mail/calendar/reasoning
	// dependencies (transport failures, non-2xx responses).
	CategoryCollaborator

	// CategoryUnsupported errors are operations Butler deliberately does
	// not perform (e.g. threaded replies).
	CategoryUnsupported
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryConnectivity:
		return "connectivity"
	case CategoryPlanning:
		return "planning"
	case CategoryValidation:
		return "validation"
	case CategoryCollaborator:
		return "collaborator"
	case CategoryUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ============================================================
// AppError
// ============================================================

// AppError is the main error type for all Butler errors.
type AppError struct {
	// Code is a unique error code for programmatic handling.
	Code string

	// Message is a user-friendly error message.
	Message string

	// Category determines how the error should be handled.
	Category Category

	// Inner is the underlying error.
	Inner error
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// ============================================================
// Constructors
// ============================================================

// New creates a new AppError.
func New(code, message string, category Category) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// Wrap wraps an existing error with context.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
		Inner:    err,
	}
}

// CategoryOf returns the category of err if it is (or wraps) an AppError.
func CategoryOf(err error) (Category, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category, true
	}
	return 0, false
}
