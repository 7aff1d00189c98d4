package errors

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kinds of failure the ingest pipeline distinguishes. Record-level kinds
// (parse, validation, duplicate key, referential) are reported inside
// results; storage kinds are returned as Go errors.
var (
	ErrParse            = new(ErrCodeParse, "parse error")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrDuplicateKey     = new(ErrCodeDuplicateKey, "duplicate key in batch")
	ErrReferential      = new(ErrCodeReferential, "referenced account not found")
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrStorageConflict  = new(ErrCodeStorageConflict, "storage conflict")
	ErrStorageTransient = new(ErrCodeStorageTransient, "storage temporarily unavailable")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrInvalidMessage   = new(ErrCodeInvalidMessage, "invalid message")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrParse:            http.StatusBadRequest,
		ErrValidation:       http.StatusBadRequest,
		ErrDuplicateKey:     http.StatusBadRequest,
		ErrReferential:      http.StatusBadRequest,
		ErrInvalidMessage:   http.StatusBadRequest,
		ErrNotFound:         http.StatusNotFound,
		ErrStorageConflict:  http.StatusConflict,
		ErrStorageTransient: http.StatusServiceUnavailable,
		ErrDatabase:         http.StatusInternalServerError,
	}
)

const (
	ErrCodeParse            = "parse_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeDuplicateKey     = "duplicate_key"
	ErrCodeReferential      = "referential_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeStorageConflict  = "storage_conflict"
	ErrCodeStorageTransient = "storage_transient"
	ErrCodeDatabase         = "database_error"
	ErrCodeInvalidMessage   = "invalid_message"
)

// Kinds of line-level parse failure reported in results.
const (
	ErrCodeBlankLine   = "blank_line"
	ErrCodeColumnCount = "column_count"
	ErrCodeInvalidDate = "invalid_date"
)

// InternalError is a sentinel carrying a machine-readable code.
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so that marks survive wrapping.
func (e *InternalError) Is(target error) bool {
	t, ok := target.(*InternalError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

// IsStorageConflict reports whether err is a unique-constraint conflict.
func IsStorageConflict(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}

// IsStorageTransient reports whether err is a connectivity or timeout failure.
func IsStorageTransient(err error) bool {
	return errors.Is(err, ErrStorageTransient)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsContextError reports cancellation or deadline expiry anywhere in the chain.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// HTTPStatusFromErr maps a marked error onto a response status.
func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the code of the first matching kind, or the database
// code for unmarked failures.
func CodeFromErr(err error) string {
	for e := range statusCodeMap {
		if errors.Is(err, e) {
			return e.(*InternalError).Code
		}
	}
	return ErrCodeDatabase
}
