package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidCredential Kind = "invalid_credential"
	KindInactiveAccount   Kind = "inactive_account"
	KindDuplicateEmail    Kind = "duplicate_email"
	KindInvalidTransition Kind = "invalid_transition"
	KindPersistence       Kind = "persistence"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindTooManyAttempts   Kind = "too_many_attempts"
)

// Error carries a kind, a message safe to show to users and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential, Message: "wrong password"}
	ErrInactiveAccount   = &Error{Kind: KindInactiveAccount, Message: "account is deactivated"}
	ErrDuplicateEmail    = &Error{Kind: KindDuplicateEmail, Message: "email already registered"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "status change not allowed"}
	ErrPersistence       = &Error{Kind: KindPersistence, Message: "storage failure"}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated, Message: "sign in required"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "not allowed"}
	ErrTooManyAttempts   = &Error{Kind: KindTooManyAttempts, Message: "too many attempts, try again later"}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) error {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newError(KindInvalidTransition, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, nil, format, args...)
}

// Persistence wraps a repository failure. Domain errors pass through untouched.
func Persistence(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	var pe *PartialLoadError
	if errors.As(err, &pe) {
		return err
	}
	return newError(KindPersistence, err, format, args...)
}

// KindOf returns the kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

const genericMessage = "something went wrong, please try again"

// UserMessage renders err for display without leaking causes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PartialLoadError
	if errors.As(err, &pe) {
		return pe.userMessage()
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return genericMessage
}

// PartialLoadError reports the parts of an aggregate load that failed while
// the rest succeeded.
type PartialLoadError struct {
	Failed map[string]error
}

func (e *PartialLoadError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, name := range e.Parts() {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failed[name]))
	}
	return "partial load: " + strings.Join(parts, "; ")
}

// Parts returns the failed part names in a stable order.
func (e *PartialLoadError) Parts() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *PartialLoadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, name := range e.Parts() {
		errs = append(errs, e.Failed[name])
	}
	return errs
}

func (e *PartialLoadError) userMessage() string {
	return "could not load " + strings.Join(e.Parts(), " and ")
}
