package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a service failure for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUpstream
)

// Error is a classified service error. Sentinels below are *Error values so
// callers can match them with errors.Is and wrap them with context.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var (
	ErrValidation   = &Error{KindValidation, "invalid input"}
	ErrSelfFollow   = &Error{KindValidation, "you cannot follow yourself"}
	ErrPostInactive = &Error{KindValidation, "post is inactive"}
	ErrConflict     = &Error{KindValidation, "already exists"}

	ErrUnauthorized = &Error{KindUnauthorized, "authentication required"}
	ErrBadLogin     = &Error{KindUnauthorized, "invalid credentials or user not active"}

	ErrForbidden = &Error{KindForbidden, "you do not have permission to perform this action"}

	ErrUserNotFound         = &Error{KindNotFound, "user not found"}
	ErrPostNotFound         = &Error{KindNotFound, "post not found"}
	ErrCommentNotFound      = &Error{KindNotFound, "comment not found"}
	ErrNotificationNotFound = &Error{KindNotFound, "notification not found"}

	ErrUpstream = &Error{KindUpstream, "upstream service failure"}
)

// Validationf returns a validation error carrying a specific message that
// still matches ErrValidation.
func Validationf(format string, args ...any) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), base: ErrValidation}
}

// Upstream wraps a provider failure so it matches ErrUpstream.
func Upstream(op string, err error) error {
	return &wrapped{msg: fmt.Sprintf("%s: %v", op, err), base: ErrUpstream, cause: err}
}

type wrapped struct {
	msg   string
	base  *Error
	cause error
}

func (w *wrapped) Error() string { return w.msg }

func (w *wrapped) Is(target error) bool { return target == w.base }

func (w *wrapped) Unwrap() error { return w.cause }

// Classify extracts the HTTP status and client-facing message for err.
// Unclassified errors become a 500 with a generic message.
func Classify(err error) (int, string) {
	var w *wrapped
	if errors.As(err, &w) {
		return w.base.Status(), w.msg
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status(), e.Msg
	}
	return http.StatusInternalServerError, "internal server error"
}
