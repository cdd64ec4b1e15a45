package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to the gateway.
const (
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeAlreadyOpen       = "ALREADY_OPEN"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeNotOwner          = "NOT_OWNER"
	CodeOwnerUnknown      = "OWNER_UNKNOWN"
	CodeNoPendingRequest  = "NO_PENDING_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodePlatformFailure   = "PLATFORM_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code so callers can use errors.Is with the
// constructors' results.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewAlreadyOpen(channelID string) error {
	return NewDomainError(CodeAlreadyOpen, "you already have an open ticket", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

func NewDuplicateRequest(channelID string) error {
	return NewDomainError(CodeDuplicateRequest, "a close request is already pending for this ticket", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

func NewNotOwner(message string) error {
	return NewDomainError(CodeNotOwner, message, http.StatusForbidden, nil)
}

func NewOwnerUnknown(channelID string) error {
	return NewDomainError(CodeOwnerUnknown, "could not resolve the ticket owner", http.StatusUnprocessableEntity,
		map[string]any{"channel_id": channelID})
}

func NewNoPendingRequest(channelID string) error {
	return NewDomainError(CodeNoPendingRequest, "no pending close request for this ticket", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

func NewNotConfigured(tenantID string) error {
	return NewDomainError(CodeNotConfigured, "the ticket system is not configured for this server", http.StatusPreconditionFailed,
		map[string]any{"tenant_id": tenantID})
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf("cannot move ticket from %s to %s", from, to), http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewStorageFailure wraps a failed durable read or write.
func NewStorageFailure(op string, err error) error {
	return &DomainError{
		Code:       CodeStorageFailure,
		Message:    "storage unavailable, try again later",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"op": op},
		Err:        err,
	}
}

// NewPlatformFailure wraps a failed call to the chat platform.
func NewPlatformFailure(op string, err error) error {
	return &DomainError{
		Code:       CodePlatformFailure,
		Message:    "chat platform unavailable, try again later",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"op": op},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsTransient reports whether the caller should try the same action later
// rather than change what it is doing.
func IsTransient(err error) bool {
	return HasCode(err, CodeStorageFailure) || HasCode(err, CodePlatformFailure) || HasCode(err, CodeInternal)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
