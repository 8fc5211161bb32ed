package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInternal          = errors.New("internal error")
	ErrConflict          = errors.New("conflict")
	ErrServiceUnavail    = errors.New("service unavailable")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrExpired           = errors.New("deadline expired")
	ErrSagaFailed        = errors.New("saga failed")
	ErrSagaTimeout       = errors.New("saga timed out")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidTransitionError reports an illegal state-machine transition. It is
// always surfaced to the caller, never coerced into the requested state.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s cannot transition from %s to %s: %s", e.Entity, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InvalidTransition creates a typed transition violation error.
func InvalidTransition(entity, from, to, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{Entity: entity, From: from, To: to, Reason: reason}
}

// ExpiredError reports an action attempted after its deadline passed.
type ExpiredError struct {
	Action   string
	Deadline time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s: deadline %s has passed", e.Action, e.Deadline.UTC().Format(time.RFC3339))
}

func (e *ExpiredError) Unwrap() error {
	return ErrExpired
}

// Expired creates a typed deadline-expired error.
func Expired(action string, deadline time.Time) *ExpiredError {
	return &ExpiredError{Action: action, Deadline: deadline}
}

// SagaFailureError reports that a peer service rejected a saga step.
type SagaFailureError struct {
	Peer    string
	Message string
}

func (e *SagaFailureError) Error() string {
	return fmt.Sprintf("saga step rejected by %s: %s", e.Peer, e.Message)
}

func (e *SagaFailureError) Unwrap() error {
	return ErrSagaFailed
}

// SagaFailure creates a typed saga failure error.
func SagaFailure(peer, message string) *SagaFailureError {
	return &SagaFailureError{Peer: peer, Message: message}
}

// SagaTimeoutError reports that required peers did not acknowledge a saga
// step before its deadline.
type SagaTimeoutError struct {
	MissingPeers []string
}

func (e *SagaTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for acknowledgement from: %s", strings.Join(e.MissingPeers, ", "))
}

func (e *SagaTimeoutError) Unwrap() error {
	return ErrSagaTimeout
}

// SagaTimeout creates a typed saga timeout error.
func SagaTimeout(missingPeers []string) *SagaTimeoutError {
	return &SagaTimeoutError{MissingPeers: missingPeers}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Gone creates a 410 error.
func Gone(message string) *AppError {
	return &AppError{
		Code:    "GONE",
		Message: message,
		Status:  http.StatusGone,
		Err:     ErrExpired,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// DependencyUnavailable creates a 503 error for a failed required call to a
// collaborator service. Commands that hit this abort without partial writes.
func DependencyUnavailable(service string, err error) *AppError {
	return &AppError{
		Code:    "DEPENDENCY_UNAVAILABLE",
		Message: fmt.Sprintf("%s is unavailable", service),
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", ErrServiceUnavail, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
