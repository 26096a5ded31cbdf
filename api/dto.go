/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Shape validation (required fields, parseable dates) happens in the
  handlers; business rules live in the ledger package.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/spendsense/finance-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to register a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to open an account.
type CreateAccountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	OpeningBalance string `json:"opening_balance"`
	IsDefault      bool   `json:"is_default"`
}

// UpdateAccountRequest is a partial metadata update; omitted fields are
// left unchanged. The balance is not editable here.
type UpdateAccountRequest struct {
	Name      *string `json:"name"`
	Type      *string `json:"type"`
	IsDefault *bool   `json:"is_default"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID                string  `json:"id"`
	AccountID         string  `json:"account_id"`
	Type              string  `json:"type"`
	Amount            string  `json:"amount"`
	Description       string  `json:"description,omitempty"`
	Date              string  `json:"date"`
	Category          string  `json:"category,omitempty"`
	IsRecurring       bool    `json:"is_recurring"`
	RecurringInterval *string `json:"recurring_interval,omitempty"`
	NextRecurringDate *string `json:"next_recurring_date,omitempty"`
	LastProcessed     *string `json:"last_processed,omitempty"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request to post a transaction.
type CreateTransactionRequest struct {
	AccountID         string `json:"account_id"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
	Date              string `json:"date"`
	Category          string `json:"category"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurringInterval string `json:"recurring_interval"`
}

// UpdateTransactionRequest is a partial update; omitted fields are left
// unchanged.
type UpdateTransactionRequest struct {
	Type              *string `json:"type"`
	Amount            *string `json:"amount"`
	Description       *string `json:"description"`
	Date              *string `json:"date"`
	Category          *string `json:"category"`
	IsRecurring       *bool   `json:"is_recurring"`
	RecurringInterval *string `json:"recurring_interval"`
}

// BudgetDTO represents a budget in API responses.
type BudgetDTO struct {
	ID            string  `json:"id"`
	Amount        string  `json:"amount"`
	LastAlertSent *string `json:"last_alert_sent,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// BudgetRequest carries the budget amount for create and update.
type BudgetRequest struct {
	Amount string `json:"amount"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toUserDTO(u *ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance.String(),
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTOs(accounts []ledger.Account) []AccountDTO {
	dtos := make([]AccountDTO, 0, len(accounts))
	for i := range accounts {
		dtos = append(dtos, toAccountDTO(&accounts[i]))
	}
	return dtos
}

func toTransactionDTO(t *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(t.ID),
		AccountID:   string(t.AccountID),
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Description: t.Description,
		Date:        t.Date.Format(time.RFC3339),
		Category:    t.Category,
		IsRecurring: t.IsRecurring,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.RecurringInterval != nil {
		s := string(*t.RecurringInterval)
		dto.RecurringInterval = &s
	}
	if t.NextRecurringDate != nil {
		s := t.NextRecurringDate.Format(time.RFC3339)
		dto.NextRecurringDate = &s
	}
	if t.LastProcessed != nil {
		s := t.LastProcessed.Format(time.RFC3339)
		dto.LastProcessed = &s
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for i := range txs {
		dtos = append(dtos, toTransactionDTO(&txs[i]))
	}
	return dtos
}

func toBudgetDTO(b *ledger.Budget) BudgetDTO {
	dto := BudgetDTO{
		ID:        string(b.ID),
		Amount:    b.Amount.String(),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
	if b.LastAlertSent != nil {
		s := b.LastAlertSent.Format(time.RFC3339)
		dto.LastAlertSent = &s
	}
	return dto
}
