// Package errors enumerates the deterministic failure kinds the validate
// apply pipeline and its reducers can return. Every failure is derivable
// from state alone: nothing here represents a transient or environmental
// error.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a validation or reducer failure for API-layer mapping and
// metrics labelling.
type Kind string

const (
	// Structural
	KindSchemaInvalid            Kind = "SchemaInvalid"
	KindHashMismatch              Kind = "HashMismatch"
	KindBadSignature              Kind = "BadSignature"
	KindCanonicalizationMismatch  Kind = "CanonicalizationMismatch"

	// Ordering
	KindUnknownIssuer       Kind = "UnknownIssuer"
	KindNonceOutOfOrder     Kind = "NonceOutOfOrder"
	KindResourcePrevMismatch Kind = "ResourcePrevMismatch"
	KindDuplicateEvent      Kind = "DuplicateEvent"

	// Precondition (subsystem-qualified via Detail)
	KindPreconditionFailed Kind = "PreconditionFailed"

	// Semantic (non-rejecting, recorded alongside the applied state)
	KindSelfReview       Kind = "SelfReview"
	KindReferenceInvalid Kind = "ReferenceInvalid"

	// Submission-layer
	KindTimeout     Kind = "Timeout"
	KindRateLimited Kind = "RateLimited"
)

// Error is the typed error returned by the validate-apply pipeline.
type Error struct {
	Kind      Kind
	Subsystem string // populated for KindPreconditionFailed
	Detail    string
	Err       error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Subsystem != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subsystem, e.Detail)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a structural/ordering error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Precondition builds a PreconditionFailed(subsystem, detail) error.
func Precondition(subsystem, detail string) *Error {
	return &Error{Kind: KindPreconditionFailed, Subsystem: subsystem, Detail: detail}
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPCode is the caller-facing error code enumeration from §7, for mapping
// by an external API layer; the engine itself never performs HTTP framing.
type HTTPCode string

const (
	CodeInsufficientBalance HTTPCode = "INSUFFICIENT_BALANCE"
	CodeNonceConflict       HTTPCode = "NONCE_CONFLICT"
	CodeStaleResource       HTTPCode = "STALE_RESOURCE"
	CodeUnauthorized        HTTPCode = "UNAUTHORIZED"
	CodeNotFound            HTTPCode = "NOT_FOUND"
	CodeRateLimited         HTTPCode = "RATE_LIMITED"
)

// MapHTTPCode maps an internal Kind to the external, caller-facing code.
func MapHTTPCode(kind Kind) HTTPCode {
	switch kind {
	case KindNonceOutOfOrder:
		return CodeNonceConflict
	case KindResourcePrevMismatch:
		return CodeStaleResource
	case KindBadSignature, KindUnknownIssuer:
		return CodeUnauthorized
	case KindRateLimited:
		return CodeRateLimited
	case KindPreconditionFailed:
		return CodeInsufficientBalance
	default:
		return CodeNotFound
	}
}
