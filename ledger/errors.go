/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All sentinel errors in one place. Callers classify with errors.Is (or the
  helpers below); the HTTP layer maps classes to status codes in one place.

ERROR CATEGORIES:
  1. Not-found   - referenced user/account/transaction/budget is missing or
                   not owned by the caller
  2. Validation  - client input violates a business rule
  3. Conflict    - optimistic-lock failure, retried internally
  Anything else propagates as an internal error.

SEE ALSO:
  - manager.go: returns these errors
  - api/handlers.go: maps them to HTTP statuses
*/
package ledger

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUserNotFound is returned when the owner referenced by an operation
	// does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccountNotFound is returned when an account does not exist or does
	// not belong to the calling owner.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when a transaction does not exist
	// or does not belong to the calling owner.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBudgetNotFound is returned when the owner has no budget.
	ErrBudgetNotFound = errors.New("budget not found")

	// ErrInvalidRecurringTransaction is returned when the recurring flag is
	// set without both a posting date and an interval.
	ErrInvalidRecurringTransaction = errors.New("recurring transaction requires date and recurring interval")

	// ErrInvalidAmount is returned when a transaction amount is not
	// strictly positive, or a budget/opening amount is negative.
	ErrInvalidAmount = errors.New("amount must be greater than 0")

	// ErrInvalidType is returned for an unknown transaction or account type.
	ErrInvalidType = errors.New("invalid type")

	// ErrNameRequired is returned when an account is created without a name.
	ErrNameRequired = errors.New("name is required")

	// ErrBudgetExists is returned when creating a budget for an owner that
	// already has one.
	ErrBudgetExists = errors.New("user already has a budget")

	// ErrConcurrentModification is returned when the compare-and-swap
	// balance update detects a conflicting writer. Lifecycle operations
	// retry on it; it should not normally escape to callers.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsNotFound reports whether the error means a missing/not-owned record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrBudgetNotFound)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecurringTransaction) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrBudgetExists)
}

// IsRetryable reports whether the operation might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
