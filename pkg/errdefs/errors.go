package errdefs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Code is a stable machine-readable error code surfaced to clients.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeUnsupportedMedia    Code = "UNSUPPORTED_MEDIA"
	CodePayloadTooLarge     Code = "PAYLOAD_TOO_LARGE"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeAccessDenied        Code = "ACCESS_DENIED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflictUnique      Code = "CONFLICT_UNIQUE"
	CodeConflictState       Code = "CONFLICT_STATE"
	CodePolicyRefusal       Code = "POLICY_REFUSAL"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamError       Code = "UPSTREAM_ERROR"
	CodeInternal            Code = "INTERNAL"
)

// Error is the service-wide error type. The HTTP layer renders it as an
// RFC 7807 problem document; everything below the HTTP layer passes it
// through unchanged so codes survive wrapping.
type Error struct {
	Code    Code
	Status  int
	Message string
	// ErrorID is set for 5xx errors and also appears in logs.
	ErrorID string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Is matches on code so callers can do errors.Is(err, errdefs.NotFound("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newErr(code Code, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

func BadRequest(msg string) *Error {
	return newErr(CodeBadRequest, http.StatusBadRequest, msg)
}

func UnsupportedMedia(msg string) *Error {
	return newErr(CodeUnsupportedMedia, http.StatusUnsupportedMediaType, msg)
}

func PayloadTooLarge(msg string) *Error {
	return newErr(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, msg)
}

func Unauthenticated(msg string) *Error {
	return newErr(CodeUnauthenticated, http.StatusUnauthorized, msg)
}

func AccessDenied(msg string) *Error {
	return newErr(CodeAccessDenied, http.StatusForbidden, msg)
}

func NotFound(msg string) *Error {
	return newErr(CodeNotFound, http.StatusNotFound, msg)
}

func ConflictUnique(msg string) *Error {
	return newErr(CodeConflictUnique, http.StatusConflict, msg)
}

func ConflictState(msg string) *Error {
	return newErr(CodeConflictState, http.StatusConflict, msg)
}

func PolicyRefusal(msg string) *Error {
	return newErr(CodePolicyRefusal, http.StatusUnprocessableEntity, msg)
}

func UpstreamTimeout(msg string, err error) *Error {
	e := newErr(CodeUpstreamTimeout, http.StatusGatewayTimeout, msg)
	e.err = err
	e.ErrorID = uuid.NewString()
	return e
}

func UpstreamUnavailable(msg string, err error) *Error {
	e := newErr(CodeUpstreamUnavailable, http.StatusBadGateway, msg)
	e.err = err
	e.ErrorID = uuid.NewString()
	return e
}

func UpstreamError(msg string, err error) *Error {
	e := newErr(CodeUpstreamError, http.StatusBadGateway, msg)
	e.err = err
	e.ErrorID = uuid.NewString()
	return e
}

func Internal(msg string, err error) *Error {
	e := newErr(CodeInternal, http.StatusInternalServerError, msg)
	e.err = err
	e.ErrorID = uuid.NewString()
	return e
}

// Wrap attaches a cause to an existing taxonomy error.
func Wrap(e *Error, err error) *Error {
	out := *e
	out.err = err
	return &out
}

// MaskNotFound converts ACCESS_DENIED into NOT_FOUND. Unauthorized callers
// must not learn that a workspace exists.
func MaskNotFound(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeAccessDenied {
		return NotFound("workspace not found")
	}
	return err
}

// CodeOf extracts the taxonomy code from an error chain, defaulting to
// INTERNAL for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
