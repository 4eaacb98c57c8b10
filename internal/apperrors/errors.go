package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	// Input-side kinds. These are fatal to the run that hit them.
	KindInputNotFound      Kind = "input_not_found"
	KindMalformedDocument  Kind = "malformed_document"
	KindScoringUnavailable Kind = "scoring_unavailable"

	// Upstream scorer kinds.
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindBadRequest Kind = "bad_request"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindInputNotFound:
		return "Input document could not be read."
	case KindMalformedDocument:
		return "Input document is not well-formed XML."
	case KindScoringUnavailable:
		return "Scoring is unavailable: no credential found for the selected backend."
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your token and permissions."
	case KindValidation:
		return "Scorer response validation failed."
	case KindBadRequest:
		return "Request rejected by the scoring service."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func InputNotFound(msg string, err error) error {
	return New(KindInputNotFound, msg, err)
}

func MalformedDocument(msg string, err error) error {
	return New(KindMalformedDocument, msg, err)
}

func ScoringUnavailable(msg string, err error) error {
	return New(KindScoringUnavailable, msg, err)
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func RateLimit(err error) error {
	return New(KindRateLimit, "", err)
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func BadRequest(err error) error {
	return New(KindBadRequest, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRetryable reports whether a later attempt at the same request may
// succeed.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	return ok && (k == KindTransient || k == KindRateLimit)
}

// IsParseError reports whether err is a document-level failure raised before
// any segment was examined.
func IsParseError(err error) bool {
	k, ok := KindOf(err)
	return ok && (k == KindInputNotFound || k == KindMalformedDocument)
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
