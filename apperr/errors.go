package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindUnknown           Kind = "UNKNOWN"
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindUniqueness        Kind = "UNIQUENESS"
	KindInvalidRecipients Kind = "INVALID_RECIPIENTS"
	KindDecryptFailed     Kind = "DECRYPT_FAILED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindStoreUnavailable  Kind = "STORE_UNAVAILABLE"
)

// Error is the tagged error variant returned by the messaging layer.
// Reasons holds human-readable validation messages; Tokens holds the
// offending recipient tokens for KindInvalidRecipients.
type Error struct {
	Kind    Kind
	Message string
	Reasons []string
	Tokens  []string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Reasons) > 0 {
		msg = msg + ": " + strings.Join(e.Reasons, "; ")
	}
	if len(e.Tokens) > 0 {
		msg = msg + ": " + strings.Join(e.Tokens, ", ")
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind. A target with a message only
// matches errors carrying that exact message, so sentinels stay distinct.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Constructors
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(msg string) error {
	return New(KindNotFound, msg)
}

func Uniqueness(msg string) error {
	return New(KindUniqueness, msg)
}

// Validation builds a validation error from the individual reason errors.
// Each reason is kept both as text and as a wrapped cause, so
// errors.Is(err, ErrUsernameTaken) still works on the aggregate.
func Validation(msg string, reasons ...error) error {
	texts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		texts = append(texts, reasonText(r))
	}
	return &Error{
		Kind:    KindValidation,
		Message: msg,
		Reasons: texts,
		Cause:   errors.Join(reasons...),
	}
}

func InvalidRecipients(tokens []string) error {
	return &Error{
		Kind:    KindInvalidRecipients,
		Message: "invalid recipients",
		Tokens:  append([]string(nil), tokens...),
	}
}

func StoreUnavailable(op string, cause error) error {
	return Wrap(KindStoreUnavailable, op, cause)
}

func reasonText(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonsOf returns the validation reasons carried by err, if any.
func ReasonsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reasons
	}
	return nil
}

// TokensOf returns the invalid recipient tokens carried by err, if any.
func TokensOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Tokens
	}
	return nil
}

// IsRecoverable reports whether the caller can re-render or re-prompt.
// Store failures and unknown errors are not recoverable.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindUniqueness, KindInvalidRecipients, KindDecryptFailed, KindUnauthorized:
		return true
	default:
		return false
	}
}
