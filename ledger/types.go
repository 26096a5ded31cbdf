/*
Package ledger is the balance-consistency core of the finance engine.

PURPOSE:
  Tracks accounts and the transactions posted against them, and keeps each
  account's cached balance equal to its opening balance plus the sum of
  signed effects of every live transaction. Recurring templates are part of
  the same record shape; the sweep package materializes them.

KEY CONCEPTS IN THIS FILE (types.go):
  - User/Account/Transaction/Budget: the persisted records
  - TransactionType: INCOME adds to the balance, EXPENSE subtracts
  - RecurringInterval: DAILY/WEEKLY/MONTHLY/YEARLY template cadence
  - SignedAmount: the one place the sign convention is defined

BALANCE INVARIANT:
  balance == openingBalance + Σ SignedAmount(t) over all persisted
  transactions of the account. Holds after every create/update/delete and
  after every sweep materialization.

RECORD INVARIANT:
  IsRecurring == true iff RecurringInterval and NextRecurringDate are both
  set. A one-off record has both nil.

SEE ALSO:
  - manager.go: lifecycle operations that preserve the invariants
  - interval.go: next-due calendar arithmetic
  - store.go: persistence interface
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type TransactionID string
type BudgetID string

func NewUserID() UserID               { return UserID(uuid.NewString()) }
func NewAccountID() AccountID         { return AccountID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
func NewBudgetID() BudgetID           { return BudgetID(uuid.NewString()) }

// =============================================================================
// ENUMS
// =============================================================================

// TransactionType determines the sign of a transaction's balance effect.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// TransactionStatus is a display tag; it carries no balance semantics.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// AccountType tags an account for display/grouping.
type AccountType string

const (
	AccountChecking AccountType = "CHECKING"
	AccountSavings  AccountType = "SAVINGS"
	AccountCredit   AccountType = "CREDIT"
	AccountCash     AccountType = "CASH"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash:
		return true
	}
	return false
}

// RecurringInterval is the cadence of a recurring template.
type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "DAILY"
	IntervalWeekly  RecurringInterval = "WEEKLY"
	IntervalMonthly RecurringInterval = "MONTHLY"
	IntervalYearly  RecurringInterval = "YEARLY"
)

func (i RecurringInterval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	}
	return false
}

// =============================================================================
// RECORDS
// =============================================================================

// User is the owner of accounts, transactions, and a budget. Identity
// resolution is external; the engine only needs the record to exist.
type User struct {
	ID        UserID
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account holds the cached running balance.
//
// Balance is mutated ONLY through the lifecycle manager's apply/revert path.
// Version is a monotonically increasing counter used for compare-and-swap
// balance updates; two concurrent writers cannot silently drop an update.
type Account struct {
	ID        AccountID
	UserID    UserID
	Name      string
	Type      AccountType
	Balance   Money
	IsDefault bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is the unit of the ledger: either a one-off posting or a
// recurring template. Amount is always positive; the sign of the balance
// effect is derived from Type, never stored.
//
// A template (IsRecurring=true) has already posted its own amount at
// creation time. Each sweep materialization spawns a one-off instance that
// posts again; the template's stored amount is never re-applied directly.
type Transaction struct {
	ID                TransactionID
	UserID            UserID
	AccountID         AccountID
	Type              TransactionType
	Amount            Money
	Description       string
	Date              time.Time
	Category          string
	IsRecurring       bool
	RecurringInterval *RecurringInterval
	NextRecurringDate *time.Time
	LastProcessed     *time.Time
	Status            TransactionStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Budget is a single per-user monthly spending limit, monitored by the
// alert job. LastAlertSent implements the alert cooldown.
type Budget struct {
	ID            BudgetID
	UserID        UserID
	Amount        Money
	LastAlertSent *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// SIGN CONVENTION
// =============================================================================

// SignedAmount is a transaction's balance effect: +amount for INCOME,
// -amount for EXPENSE.
func SignedAmount(typ TransactionType, amount Money) Money {
	if typ == TypeIncome {
		return amount
	}
	return amount.Neg()
}

// applyEffect returns balance + signed effect of (typ, amount).
func applyEffect(balance Money, typ TransactionType, amount Money) Money {
	return balance.Add(SignedAmount(typ, amount))
}

// revertEffect is the exact inverse of applyEffect.
func revertEffect(balance Money, typ TransactionType, amount Money) Money {
	return balance.Sub(SignedAmount(typ, amount))
}
