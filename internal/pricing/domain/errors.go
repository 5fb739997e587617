package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a pricing-specific error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Common domain error codes
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidRule     = "INVALID_RULE"
	ErrCodeRuleFetchFailed = "RULE_FETCH_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message, details string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: fmt.Sprintf("ID: %s", id),
	}
}

// NewInvalidRuleError reports a rule that cannot take part in evaluation:
// an unknown kind, a non-positive multiplier or a negative threshold.
func NewInvalidRuleError(ruleID, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidRule,
		Message: "invalid pricing rule",
		Details: fmt.Sprintf("rule %s: %s", ruleID, reason),
	}
}

// NewRuleFetchError wraps a failure to read rules or sales state for an item.
func NewRuleFetchError(itemID string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrCodeRuleFetchFailed,
		Message: "failed to fetch pricing inputs",
		Details: fmt.Sprintf("item %s: %v", itemID, cause),
		cause:   cause,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// GetDomainError extracts a domain error from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// HasCode reports whether err carries a domain error with the given code
func HasCode(err error, code string) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Code == code
}
