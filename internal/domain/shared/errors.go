// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// Economy errors
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyGranted    = errors.New("reward already granted")
	ErrNoTokensRemaining = errors.New("no reroll tokens remaining")

	// State errors
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyProcessed  = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConflict               = errors.New("transaction conflict")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "quest", "challenge"
	Op      string // Operation that failed, e.g., "ApplyDelta", "Accept"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger domain errors
var (
	ErrBalanceNotFound    = NewDomainError("ledger", "Find", ErrNotFound, "balance record not found")
	ErrBalanceExists      = NewDomainError("ledger", "Create", ErrAlreadyExists, "balance record already exists")
	ErrNegativeBalance    = NewDomainError("ledger", "ApplyDelta", ErrInsufficientFunds, "spend would drive currency negative")
	ErrDuplicateEntry     = NewDomainError("ledger", "Append", ErrAlreadyProcessed, "ledger entry with this idempotency key exists")
	ErrTooManyTxConflicts = NewDomainError("ledger", "ApplyDelta", ErrConflict, "transaction retries exhausted")
)

// Quest domain errors
var (
	ErrQuestNotFound     = NewDomainError("quest", "Find", ErrNotFound, "quest not found")
	ErrQuestNotCompleted = NewDomainError("quest", "Claim", ErrInvalidState, "quest is not completed")
	ErrQuestClaimed      = NewDomainError("quest", "Claim", ErrAlreadyProcessed, "quest reward already claimed")
	ErrRerollExhausted   = NewDomainError("quest", "Reroll", ErrNoTokensRemaining, "no reroll tokens left today")
	ErrRerollProgressed  = NewDomainError("quest", "Reroll", ErrInvalidState, "cannot reroll a quest with progress")
)

// Challenge domain errors
var (
	ErrChallengeNotFound   = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrNotParticipant      = NewDomainError("challenge", "Authorize", ErrUnauthorized, "caller is not a challenge participant")
	ErrChallengeTransition = NewDomainError("challenge", "Transition", ErrInvalidTransition, "action not permitted in current status")
	ErrResultRecorded      = NewDomainError("challenge", "RecordResult", ErrAlreadyProcessed, "result already recorded for this party")
	ErrChallengeCompleted  = NewDomainError("challenge", "Complete", ErrAlreadyProcessed, "challenge already completed")
)

// External service errors
var (
	ErrCatalogueUnavailable = NewDomainError("catalogue", "Request", ErrServiceUnavailable, "course catalogue is unavailable")
	ErrScorerUnavailable    = NewDomainError("scorer", "Score", ErrServiceUnavailable, "quiz scorer is unavailable")
	ErrNotificationFailed   = NewDomainError("notification", "Enqueue", ErrExternalService, "failed to enqueue notification")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientFunds checks if the error is an "insufficient funds" error.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsConflict checks if the error is a transaction conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrConcurrentModification)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
