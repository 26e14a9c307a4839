package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInvalidCode        = "INVALID_CODE"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeNotEligible        = "NOT_ELIGIBLE"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountPending     = "ACCOUNT_PENDING"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeNotificationFailed = "NOTIFICATION_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
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

// Is matches on Code so callers can compare against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Sentinels for errors.Is checks. Never mutate them; constructors below return fresh values.
var (
	ErrValidation         = &DomainError{Code: CodeValidation}
	ErrEmailTaken         = &DomainError{Code: CodeEmailTaken}
	ErrInvalidCode        = &DomainError{Code: CodeInvalidCode}
	ErrOTPExpired         = &DomainError{Code: CodeOTPExpired}
	ErrNotEligible        = &DomainError{Code: CodeNotEligible}
	ErrInvalidCredentials = &DomainError{Code: CodeInvalidCredentials}
	ErrAccountPending     = &DomainError{Code: CodeAccountPending}
	ErrUnauthorized       = &DomainError{Code: CodeUnauthorized}
	ErrForbidden          = &DomainError{Code: CodeForbidden}
	ErrNotFound           = &DomainError{Code: CodeNotFound}
	ErrInvalidTransition  = &DomainError{Code: CodeInvalidTransition}
	ErrTooManyAttempts    = &DomainError{Code: CodeTooManyAttempts}
	ErrNotificationFailed = &DomainError{Code: CodeNotificationFailed}
)

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewEmailTaken reports a duplicate registration. The public API answers 400 here.
func NewEmailTaken() error {
	return NewDomainError(CodeEmailTaken, "Email already exists", http.StatusBadRequest, nil)
}

func NewInvalidCode() error {
	return NewDomainError(CodeInvalidCode, "Invalid OTP", http.StatusBadRequest, nil)
}

func NewOTPExpired() error {
	return NewDomainError(CodeOTPExpired, "OTP has expired", http.StatusBadRequest, nil)
}

func NewNotEligible(message string) error {
	return NewDomainError(CodeNotEligible, message, http.StatusBadRequest, nil)
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid email or password", http.StatusBadRequest, nil)
}

func NewAccountPending() error {
	return NewDomainError(CodeAccountPending, "Account email is not verified", http.StatusForbidden, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

// NewNotFoundMessage is NewNotFound with a caller supplied message.
func NewNotFoundMessage(message string) error {
	return NewDomainError(CodeNotFound, message, http.StatusNotFound, nil)
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot move appointment from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewTooManyAttempts() error {
	return NewDomainError(CodeTooManyAttempts, "Too many failed attempts, try again later", http.StatusTooManyRequests, nil)
}

// NewNotificationFailed wraps a mail transport failure.
func NewNotificationFailed(err error) error {
	return &DomainError{
		Code:       CodeNotificationFailed,
		Message:    "Failed to send OTP email",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Unknown errors become INTERNAL_ERROR.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.HTTPStatus != 0 {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
