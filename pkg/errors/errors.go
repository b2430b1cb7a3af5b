package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error code carried in the API envelope.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodePendingApproval  Code = "PENDING_APPROVAL"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeIdentityProvider Code = "IDENTITY_PROVIDER_ERROR"
	CodeStorage          Code = "STORAGE_FAILURE"
	CodeDependency       Code = "DEPENDENCY_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Metadata describes how a code is rendered over HTTP. When ExposeMessage is
// false clients only ever see PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
	exposed
)

func meta(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
		ExposeMessage:  flags&exposed != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       meta(http.StatusBadRequest, "validation failed", withDetails|exposed),
	CodeUnauthorized:     meta(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:        meta(http.StatusForbidden, "access denied", exposed),
	CodePendingApproval:  meta(http.StatusForbidden, "account pending approval", exposed),
	CodeNotFound:         meta(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:         meta(http.StatusConflict, "conflict detected", exposed),
	CodeStateConflict:    meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails|exposed),
	CodeAlreadyProcessed: meta(http.StatusConflict, "registration request already processed", exposed),
	CodeIdempotency:      meta(http.StatusConflict, "idempotency key reused", withDetails|exposed),
	CodeRateLimit:        meta(http.StatusTooManyRequests, "rate limit exceeded", exposed),
	CodeIdentityProvider: meta(http.StatusUnprocessableEntity, "account could not be created", withDetails|exposed),
	CodeStorage:          meta(http.StatusInternalServerError, "file could not be stored", retryable),
	CodeDependency:       meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
	CodeInternal:         meta(http.StatusInternalServerError, "internal server error", retryable),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error every service returns across package boundaries.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code to cause. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails mutates e and returns it for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
