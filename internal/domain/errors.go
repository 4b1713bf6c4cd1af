package domain

import (
	"errors"
	"fmt"
)

// Kind classifies expected, caller-recoverable failures. The kind string is
// what API clients see.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindInvalidTransition     Kind = "invalid_transition"
	KindAlreadyDecided        Kind = "already_decided"
	KindQuoteExpired          Kind = "quote_expired"
	KindIncompleteInspection  Kind = "incomplete_inspection"
	KindCannotCancelFinalized Kind = "cannot_cancel_finalized"
	KindUnknownVariant        Kind = "unknown_variant"
	KindUnknownCondition      Kind = "unknown_condition"
	KindOrderNotInspectable   Kind = "order_not_inspectable"
	KindItemNotFound          Kind = "item_not_found"
	KindConcurrencyConflict   Kind = "concurrency_conflict"
)

// Error carries a Kind plus a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports a match against a bare sentinel of the same kind, so
// errors.Is(err, domain.ErrQuoteExpired) works for any quote_expired error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrAlreadyDecided        = &Error{Kind: KindAlreadyDecided}
	ErrQuoteExpired          = &Error{Kind: KindQuoteExpired}
	ErrIncompleteInspection  = &Error{Kind: KindIncompleteInspection}
	ErrCannotCancelFinalized = &Error{Kind: KindCannotCancelFinalized}
	ErrUnknownVariant        = &Error{Kind: KindUnknownVariant}
	ErrUnknownCondition      = &Error{Kind: KindUnknownCondition}
	ErrOrderNotInspectable   = &Error{Kind: KindOrderNotInspectable}
	ErrItemNotFound          = &Error{Kind: KindItemNotFound}
	ErrConcurrencyConflict   = &Error{Kind: KindConcurrencyConflict}
)

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err. The second result is false for
// unexpected (storage, connectivity) failures.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Kind, true
	}
	return "", false
}
