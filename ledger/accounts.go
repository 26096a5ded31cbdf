/*
accounts.go - Account and user operations

PURPOSE:
  The account CRUD the ledger needs: create with an explicit opening
  balance, metadata updates, deletion with transaction cascade, and the
  at-most-one-default-per-owner rule. Plus minimal user records for owner
  resolution (identity itself is an external concern).

BALANCE POLICY:
  The balance is NOT editable here. After creation it moves only through
  the lifecycle manager's apply/revert path; account update accepts name,
  type, and the default flag.

DELETION:
  Deleting an account cascades deletion of its transactions and performs
  no balance revert - the account row itself is removed.
*/
package ledger

import (
	"context"
)

// =============================================================================
// USERS
// =============================================================================

// CreateUserInput carries the fields for a new user record.
type CreateUserInput struct {
	Email string
	Name  string
}

// CreateUser registers an owner record.
func (m *Manager) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	now := m.now()
	u := User{
		ID:        NewUserID(),
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser loads a user record.
func (m *Manager) GetUser(ctx context.Context, id UserID) (*User, error) {
	u, err := m.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccountInput carries the caller-supplied fields for a new account.
type CreateAccountInput struct {
	Name           string
	Type           AccountType
	OpeningBalance Money
	IsDefault      bool
}

// UpdateAccountInput is a partial metadata update; nil fields are unchanged.
// The balance is deliberately absent.
type UpdateAccountInput struct {
	Name      *string
	Type      *AccountType
	IsDefault *bool
}

// CreateAccount creates an account with an explicit opening balance. When
// IsDefault is set, any existing default for the owner is demoted in the
// same atomic unit.
func (m *Manager) CreateAccount(ctx context.Context, owner UserID, in CreateAccountInput) (*Account, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if !in.Type.Valid() {
		return nil, ErrInvalidType
	}
	if in.OpeningBalance.IsNegative() {
		return nil, ErrInvalidAmount
	}

	user, err := m.store.GetUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	now := m.now()
	account := Account{
		ID:        NewAccountID(),
		UserID:    owner,
		Name:      in.Name,
		Type:      in.Type,
		Balance:   in.OpeningBalance,
		IsDefault: in.IsDefault,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = m.store.WithTx(ctx, func(s Store) error {
		if in.IsDefault {
			if err := m.demoteDefault(ctx, s, owner, account.ID); err != nil {
				return err
			}
		}
		return s.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount loads a single owned account.
func (m *Manager) GetAccount(ctx context.Context, owner UserID, id AccountID) (*Account, error) {
	account, err := m.store.GetAccount(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ListAccounts returns all accounts of an owner.
func (m *Manager) ListAccounts(ctx context.Context, owner UserID) ([]Account, error) {
	return m.store.ListAccounts(ctx, owner)
}

// UpdateAccount applies a partial metadata update.
func (m *Manager) UpdateAccount(ctx context.Context, owner UserID, id AccountID, in UpdateAccountInput) (*Account, error) {
	if in.Type != nil && !in.Type.Valid() {
		return nil, ErrInvalidType
	}

	account, err := m.store.GetAccount(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, ErrNameRequired
		}
		account.Name = *in.Name
	}
	if in.Type != nil {
		account.Type = *in.Type
	}
	promote := in.IsDefault != nil && *in.IsDefault && !account.IsDefault
	if in.IsDefault != nil {
		account.IsDefault = *in.IsDefault
	}
	account.UpdatedAt = m.now()

	err = m.store.WithTx(ctx, func(s Store) error {
		if promote {
			if err := m.demoteDefault(ctx, s, owner, account.ID); err != nil {
				return err
			}
		}
		return s.SaveAccount(ctx, *account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an owned account and all of its transactions.
func (m *Manager) DeleteAccount(ctx context.Context, owner UserID, id AccountID) error {
	account, err := m.store.GetAccount(ctx, id, owner)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	return m.store.DeleteAccount(ctx, account.ID)
}

// demoteDefault clears the owner's current default account, if it is a
// different account than the one being promoted.
func (m *Manager) demoteDefault(ctx context.Context, s Store, owner UserID, promoting AccountID) error {
	current, err := s.GetDefaultAccount(ctx, owner)
	if err != nil {
		return err
	}
	if current == nil || current.ID == promoting {
		return nil
	}
	current.IsDefault = false
	current.UpdatedAt = m.now()
	return s.SaveAccount(ctx, *current)
}
