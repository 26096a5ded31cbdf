/*
budget.go - Per-user budget operations

One budget per owner: create rejects a duplicate, update changes the
amount, delete removes it. The budget-alert job (sweep/alerts.go) reads
budgets through the store and stamps LastAlertSent for its cooldown.
*/
package ledger

import (
	"context"
)

// CreateBudget sets the owner's monthly spending limit. An owner can have
// at most one budget.
func (m *Manager) CreateBudget(ctx context.Context, owner UserID, amount Money) (*Budget, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	user, err := m.store.GetUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	existing, err := m.store.GetBudget(ctx, owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrBudgetExists
	}

	now := m.now()
	b := Budget{
		ID:        NewBudgetID(),
		UserID:    owner,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveBudget(ctx, b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBudget loads the owner's budget.
func (m *Manager) GetBudget(ctx context.Context, owner UserID) (*Budget, error) {
	b, err := m.store.GetBudget(ctx, owner)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBudgetNotFound
	}
	return b, nil
}

// UpdateBudget changes the budget amount.
func (m *Manager) UpdateBudget(ctx context.Context, owner UserID, amount Money) (*Budget, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	b, err := m.store.GetBudget(ctx, owner)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBudgetNotFound
	}

	b.Amount = amount
	b.UpdatedAt = m.now()
	if err := m.store.SaveBudget(ctx, *b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBudget removes the owner's budget.
func (m *Manager) DeleteBudget(ctx context.Context, owner UserID) error {
	b, err := m.store.GetBudget(ctx, owner)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrBudgetNotFound
	}
	return m.store.DeleteBudget(ctx, b.ID)
}
