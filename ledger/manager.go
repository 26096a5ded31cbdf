/*
manager.go - Transaction lifecycle manager

PURPOSE:
  The single entry point for creating, updating, and deleting transactions.
  Responsible for keeping the account's cached balance in sync with the set
  of live transaction records.

BALANCE DISCIPLINE:
  create  -> apply the signed effect, insert the record
  update  -> revert the current effect, merge the changes, re-apply the
             (possibly changed) effect, persist
  delete  -> revert the effect, delete the record

  The revert-then-reapply pattern makes the balance invariant hold no
  matter which fields changed; a no-op update nets to zero.

ATOMICITY & CONCURRENCY:
  Each operation runs its writes in one Store.WithTx unit. The balance
  write is a compare-and-swap against the account version read at the start
  of the attempt; on ErrConcurrentModification the whole operation is
  re-read and retried (maxRetries attempts).

SEE ALSO:
  - accounts.go: account and user operations
  - budget.go: budget operations
  - sweep/engine.go: drives Materialize for due templates
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// maxRetries bounds optimistic-lock retries per operation.
const maxRetries = 3

// Manager implements the transaction lifecycle over a Store.
type Manager struct {
	store Store

	// Clock returns the current time; nil means time.Now. Tests override it.
	Clock func() time.Time
}

// NewManager creates a lifecycle manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// withRetry re-runs fn while it fails with a retryable conflict.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// =============================================================================
// INPUTS
// =============================================================================

// CreateTransactionInput carries the caller-supplied fields for create.
type CreateTransactionInput struct {
	AccountID         AccountID
	Type              TransactionType
	Amount            Money
	Description       string
	Date              time.Time
	Category          string
	IsRecurring       bool
	RecurringInterval *RecurringInterval
}

// UpdateTransactionInput is a partial update; nil fields are left unchanged.
type UpdateTransactionInput struct {
	Type              *TransactionType
	Amount            *Money
	Description       *string
	Date              *time.Time
	Category          *string
	IsRecurring       *bool
	RecurringInterval *RecurringInterval
}

// =============================================================================
// CREATE
// =============================================================================

// CreateTransaction posts a new transaction (one-off or recurring template)
// and applies its signed effect to the account balance, atomically.
func (m *Manager) CreateTransaction(ctx context.Context, owner UserID, in CreateTransactionInput) (*Transaction, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidType
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	user, err := m.store.GetUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if in.IsRecurring && (in.Date.IsZero() || in.RecurringInterval == nil || !in.RecurringInterval.Valid()) {
		return nil, ErrInvalidRecurringTransaction
	}

	now := m.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	rec := Transaction{
		ID:          NewTransactionID(),
		UserID:      owner,
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        date,
		Category:    in.Category,
		Status:      StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsRecurring {
		next := NextOccurrence(date, *in.RecurringInterval)
		interval := *in.RecurringInterval
		rec.IsRecurring = true
		rec.RecurringInterval = &interval
		rec.NextRecurringDate = &next
	}

	err = withRetry(func() error {
		account, err := m.store.GetAccount(ctx, in.AccountID, owner)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		newBalance := applyEffect(account.Balance, rec.Type, rec.Amount)
		return m.store.WithTx(ctx, func(s Store) error {
			if err := s.UpdateAccountBalance(ctx, account.ID, newBalance, account.Version); err != nil {
				return err
			}
			return s.InsertTransaction(ctx, rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateTransaction applies a partial update. The current signed effect is
// reverted, the supplied fields are merged, and the updated effect is
// re-applied, all in one atomic unit.
func (m *Manager) UpdateTransaction(ctx context.Context, owner UserID, id TransactionID, in UpdateTransactionInput) (*Transaction, error) {
	if in.Type != nil && !in.Type.Valid() {
		return nil, ErrInvalidType
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var updated Transaction
	err := withRetry(func() error {
		rec, err := m.store.GetTransaction(ctx, id, owner)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrTransactionNotFound
		}

		account, err := m.store.GetAccount(ctx, rec.AccountID, owner)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		// Revert the current effect before the record changes shape.
		balance := revertEffect(account.Balance, rec.Type, rec.Amount)

		upd := *rec
		if in.Type != nil {
			upd.Type = *in.Type
		}
		if in.Amount != nil {
			upd.Amount = *in.Amount
		}
		if in.Description != nil {
			upd.Description = *in.Description
		}
		if in.Date != nil {
			upd.Date = *in.Date
		}
		if in.Category != nil {
			upd.Category = *in.Category
		}
		if in.IsRecurring != nil {
			upd.IsRecurring = *in.IsRecurring
		}
		if in.RecurringInterval != nil {
			if !in.RecurringInterval.Valid() {
				return ErrInvalidRecurringTransaction
			}
			interval := *in.RecurringInterval
			upd.RecurringInterval = &interval
		}

		if upd.IsRecurring {
			if upd.Date.IsZero() || upd.RecurringInterval == nil {
				return ErrInvalidRecurringTransaction
			}
			// Recompute the due date only when the recurrence inputs moved;
			// an unrelated edit must not reset an advanced template.
			if in.IsRecurring != nil || in.Date != nil || in.RecurringInterval != nil {
				next := NextOccurrence(upd.Date, *upd.RecurringInterval)
				upd.NextRecurringDate = &next
			}
		} else {
			upd.RecurringInterval = nil
			upd.NextRecurringDate = nil
		}

		balance = applyEffect(balance, upd.Type, upd.Amount)
		upd.UpdatedAt = m.now()

		if err := m.store.WithTx(ctx, func(s Store) error {
			if err := s.UpdateAccountBalance(ctx, account.ID, balance, account.Version); err != nil {
				return err
			}
			return s.UpdateTransaction(ctx, upd)
		}); err != nil {
			return err
		}
		updated = upd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteTransaction reverts the record's signed effect and removes it.
func (m *Manager) DeleteTransaction(ctx context.Context, owner UserID, id TransactionID) error {
	return withRetry(func() error {
		rec, err := m.store.GetTransaction(ctx, id, owner)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrTransactionNotFound
		}

		account, err := m.store.GetAccount(ctx, rec.AccountID, owner)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		balance := revertEffect(account.Balance, rec.Type, rec.Amount)
		return m.store.WithTx(ctx, func(s Store) error {
			if err := s.UpdateAccountBalance(ctx, account.ID, balance, account.Version); err != nil {
				return err
			}
			return s.DeleteTransaction(ctx, rec.ID)
		})
	})
}

// =============================================================================
// READS
// =============================================================================

// GetTransaction loads a single owned transaction.
func (m *Manager) GetTransaction(ctx context.Context, owner UserID, id TransactionID) (*Transaction, error) {
	rec, err := m.store.GetTransaction(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrTransactionNotFound
	}
	return rec, nil
}

// ListTransactions returns all transactions for an owner.
func (m *Manager) ListTransactions(ctx context.Context, owner UserID) ([]Transaction, error) {
	return m.store.ListTransactions(ctx, owner)
}

// ListAccountTransactions returns the transactions of one owned account.
func (m *Manager) ListAccountTransactions(ctx context.Context, owner UserID, account AccountID) ([]Transaction, error) {
	acc, err := m.store.GetAccount(ctx, account, owner)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return m.store.ListAccountTransactions(ctx, account, owner)
}

// =============================================================================
// MATERIALIZATION (sweep path)
// =============================================================================

// Materialize creates a one-off instance from a due recurring template and
// advances the template by exactly one interval, atomically. The advance
// doubles as the claim: if another run already moved the template's due
// date, Materialize reports claimed=false and writes nothing.
//
// This is the same balance-apply path as CreateTransaction.
func (m *Manager) Materialize(ctx context.Context, tmpl Transaction, now time.Time) (instance *Transaction, claimed bool, err error) {
	if !tmpl.IsRecurring || tmpl.RecurringInterval == nil || tmpl.NextRecurringDate == nil {
		return nil, false, fmt.Errorf("materialize: transaction %s is not a recurring template", tmpl.ID)
	}

	oldNext := *tmpl.NextRecurringDate
	newNext := NextOccurrence(oldNext, *tmpl.RecurringInterval)

	err = withRetry(func() error {
		account, err := m.store.GetAccount(ctx, tmpl.AccountID, tmpl.UserID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		rec := Transaction{
			ID:          NewTransactionID(),
			UserID:      tmpl.UserID,
			AccountID:   tmpl.AccountID,
			Type:        tmpl.Type,
			Amount:      tmpl.Amount,
			Description: tmpl.Description,
			Date:        now,
			Category:    tmpl.Category,
			Status:      StatusCompleted,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		newBalance := applyEffect(account.Balance, rec.Type, rec.Amount)

		return m.store.WithTx(ctx, func(s Store) error {
			won, err := s.ClaimTemplate(ctx, tmpl.ID, oldNext, newNext, now)
			if err != nil {
				return err
			}
			if !won {
				// Another run took this occurrence; nothing to write.
				return nil
			}
			if err := s.UpdateAccountBalance(ctx, account.ID, newBalance, account.Version); err != nil {
				return err
			}
			if err := s.InsertTransaction(ctx, rec); err != nil {
				return err
			}
			claimed = true
			instance = &rec
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return instance, claimed, nil
}
