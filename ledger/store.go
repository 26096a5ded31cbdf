/*
store.go - Persistence interface for the ledger core

PURPOSE:
  Defines the storage contract the lifecycle manager and sweep engine run
  against. Implementations: store/sqlite (production) and ledger/store
  (in-memory, for tests).

ATOMICITY:
  WithTx runs a function against a transaction-bound Store; every write
  inside either commits as one unit or rolls back as one unit. All
  lifecycle operations and every sweep item go through WithTx.

CONCURRENCY:
  UpdateAccountBalance is a compare-and-swap: it succeeds only when the
  stored version still matches the version the caller read, and bumps the
  version on success. A mismatch returns ErrConcurrentModification.

CLAIMING:
  ClaimTemplate advances a template's next-due date only if it still holds
  the value the sweep read. Zero rows affected means another run already
  claimed this occurrence.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - ledger/store/memory.go: in-memory implementation
*/
package ledger

import (
	"context"
	"time"
)

// Store is the persistence contract for the engine.
type Store interface {
	// ---- users ----

	SaveUser(ctx context.Context, u User) error
	// GetUser returns nil when the user does not exist.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// ---- accounts ----

	// SaveAccount inserts a new account, or updates the metadata (name,
	// type, default flag) of an existing one. The balance and version
	// columns are written only on insert; afterwards they move exclusively
	// through UpdateAccountBalance.
	SaveAccount(ctx context.Context, a Account) error
	// GetAccount returns nil when the account does not exist or is not
	// owned by the given user.
	GetAccount(ctx context.Context, id AccountID, owner UserID) (*Account, error)
	ListAccounts(ctx context.Context, owner UserID) ([]Account, error)
	// GetDefaultAccount returns nil when the owner has no default account.
	GetDefaultAccount(ctx context.Context, owner UserID) (*Account, error)
	// UpdateAccountBalance writes a new balance iff the stored version
	// equals expectedVersion, bumping the version. Returns
	// ErrConcurrentModification on a version mismatch (or missing row).
	UpdateAccountBalance(ctx context.Context, id AccountID, balance Money, expectedVersion int64) error
	// DeleteAccount removes the account and cascades deletion of its
	// transactions. No balance revert: the account itself is gone.
	DeleteAccount(ctx context.Context, id AccountID) error

	// ---- transactions ----

	InsertTransaction(ctx context.Context, t Transaction) error
	UpdateTransaction(ctx context.Context, t Transaction) error
	// GetTransaction returns nil when missing or not owned.
	GetTransaction(ctx context.Context, id TransactionID, owner UserID) (*Transaction, error)
	ListTransactions(ctx context.Context, owner UserID) ([]Transaction, error)
	ListAccountTransactions(ctx context.Context, account AccountID, owner UserID) ([]Transaction, error)
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// FindDueTemplates returns templates with IsRecurring=true and
	// NextRecurringDate strictly before now.
	FindDueTemplates(ctx context.Context, now time.Time) ([]Transaction, error)
	// ClaimTemplate conditionally advances a template: next-due moves from
	// oldNext to newNext and LastProcessed is stamped, only if the stored
	// next-due still equals oldNext. Reports whether the claim won.
	ClaimTemplate(ctx context.Context, id TransactionID, oldNext, newNext, processedAt time.Time) (bool, error)

	// SumExpenses totals EXPENSE amounts for an owner in [from, to).
	SumExpenses(ctx context.Context, owner UserID, from, to time.Time) (Money, error)

	// ---- budgets ----

	SaveBudget(ctx context.Context, b Budget) error
	// GetBudget returns nil when the owner has no budget.
	GetBudget(ctx context.Context, owner UserID) (*Budget, error)
	ListBudgets(ctx context.Context) ([]Budget, error)
	DeleteBudget(ctx context.Context, id BudgetID) error
	// MarkBudgetAlerted stamps LastAlertSent.
	MarkBudgetAlerted(ctx context.Context, id BudgetID, at time.Time) error

	// ---- atomicity ----

	// WithTx runs fn against a transaction-bound Store. All writes inside
	// commit or roll back together. Nested WithTx joins the outer unit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
