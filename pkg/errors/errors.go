package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so cloned errors still match their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared by the transport layer.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Enrollment engine error kinds.
var (
	ErrClassNotFound       = New("CLASS_NOT_FOUND", http.StatusNotFound, "class does not exist")
	ErrStudentNotFound     = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student does not exist")
	ErrInstructorNotFound  = New("INSTRUCTOR_NOT_FOUND", http.StatusNotFound, "instructor does not exist")
	ErrNotAuthorized       = New("NOT_AUTHORIZED", http.StatusForbidden, "you are not the instructor of this class")
	ErrEnrollmentClosed    = New("ENROLLMENT_CLOSED", http.StatusConflict, "enrollment is closed")
	ErrAlreadyEnrolled     = New("ALREADY_ENROLLED", http.StatusConflict, "student is already enrolled")
	ErrNotEnrolled         = New("NOT_ENROLLED", http.StatusNotFound, "student is not enrolled in this class")
	ErrAlreadyOnWaitlist   = New("ALREADY_ON_WAITLIST", http.StatusConflict, "student is already on the waitlist")
	ErrNotOnWaitlist       = New("NOT_ON_WAITLIST", http.StatusNotFound, "student is not on the waitlist")
	ErrTooManyWaitlists    = New("TOO_MANY_WAITLISTS", http.StatusConflict, "student is already on the maximum number of waitlists")
	ErrWaitlistFull        = New("WAITLIST_FULL", http.StatusForbidden, "waitlist is full for this class")
	ErrConstraintViolation = New("CONSTRAINT_VIOLATION", http.StatusConflict, "write rejected by the store")
	ErrAlreadyExists       = New("ALREADY_EXISTS", http.StatusConflict, "class already exists")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an unexpected failure with a caller supplied message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
