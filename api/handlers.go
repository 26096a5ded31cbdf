/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the ledger and sweep engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    POST   /api/users                   Register a user
    GET    /api/users/me                Current user record

  Accounts:
    GET    /api/accounts                List accounts
    POST   /api/accounts                Create account
    GET    /api/accounts/{id}           Get account
    PUT    /api/accounts/{id}           Update account metadata
    DELETE /api/accounts/{id}           Delete account (cascades)
    GET    /api/accounts/{id}/transactions  Account history

  Transactions:
    GET    /api/transactions            List transactions
    POST   /api/transactions            Post a transaction
    GET    /api/transactions/{id}       Get transaction
    PUT    /api/transactions/{id}       Partial update
    DELETE /api/transactions/{id}       Delete (reverts balance)

  Budget:
    GET    /api/budget                  Get budget
    POST   /api/budget                  Create budget
    PUT    /api/budget                  Update amount
    DELETE /api/budget                  Delete budget

  Admin:
    POST   /api/admin/sweep             Run the recurring sweep now
    POST   /api/admin/budget-alerts     Run the budget check now

IDENTITY:
  The owner is taken from the X-User-Id header. Authentication itself is
  an upstream concern (gateway / reverse proxy); the engine only scopes
  data by owner.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing X-User-Id header
  - 404: Record not found or not owned
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spendsense/finance-engine/ledger"
	"github.com/spendsense/finance-engine/sweep"
)

// userIDHeader carries the authenticated owner's id, set by the upstream
// auth layer.
const userIDHeader = "X-User-Id"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager *ledger.Manager
	Engine  *sweep.Engine
	Monitor *sweep.BudgetMonitor
}

// NewHandler creates a handler over the lifecycle manager and jobs.
func NewHandler(manager *ledger.Manager, engine *sweep.Engine, monitor *sweep.BudgetMonitor) *Handler {
	return &Handler{Manager: manager, Engine: engine, Monitor: monitor}
}

// owner extracts the calling user's id; ok=false means the header was
// missing and a 401 has been written.
func owner(w http.ResponseWriter, r *http.Request) (ledger.UserID, bool) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header", nil)
		return "", false
	}
	return ledger.UserID(id), true
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

// CreateUser registers a user record.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	user, err := h.Manager.CreateUser(r.Context(), ledger.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GetCurrentUser returns the calling user's record.
// GET /api/users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	user, err := h.Manager.GetUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// ListAccounts returns the caller's accounts.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	accounts, err := h.Manager.ListAccounts(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTOs(accounts))
}

// CreateAccount opens an account with an opening balance.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	opening := ledger.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = ledger.NewMoneyFromString(req.OpeningBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid opening_balance", err)
			return
		}
	}

	account, err := h.Manager.CreateAccount(r.Context(), uid, ledger.CreateAccountInput{
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		OpeningBalance: opening,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns one owned account.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	account, err := h.Manager.GetAccount(r.Context(), uid, ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// UpdateAccount applies a partial metadata update.
// PUT /api/accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	in := ledger.UpdateAccountInput{
		Name:      req.Name,
		IsDefault: req.IsDefault,
	}
	if req.Type != nil {
		t := ledger.AccountType(*req.Type)
		in.Type = &t
	}

	account, err := h.Manager.UpdateAccount(r.Context(), uid, ledger.AccountID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// DeleteAccount removes an account and its transactions.
// DELETE /api/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.Manager.DeleteAccount(r.Context(), uid, ledger.AccountID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccountTransactions returns one account's history.
// GET /api/accounts/{id}/transactions
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	txs, err := h.Manager.ListAccountTransactions(r.Context(), uid, ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// ListTransactions returns all of the caller's transactions.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	txs, err := h.Manager.ListTransactions(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateTransaction posts a one-off transaction or recurring template.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	amount, err := ledger.NewMoneyFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	in := ledger.CreateTransactionInput{
		AccountID:   ledger.AccountID(req.AccountID),
		Type:        ledger.TransactionType(req.Type),
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		IsRecurring: req.IsRecurring,
	}
	if req.Date != "" {
		date, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want RFC3339", err)
			return
		}
		in.Date = date
	}
	if req.RecurringInterval != "" {
		interval := ledger.RecurringInterval(req.RecurringInterval)
		in.RecurringInterval = &interval
	}

	tx, err := h.Manager.CreateTransaction(r.Context(), uid, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// GetTransaction returns one owned transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	tx, err := h.Manager.GetTransaction(r.Context(), uid, ledger.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// UpdateTransaction applies a partial update; the account balance tracks
// the change automatically.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	in := ledger.UpdateTransactionInput{
		Description: req.Description,
		Category:    req.Category,
		IsRecurring: req.IsRecurring,
	}
	if req.Type != nil {
		t := ledger.TransactionType(*req.Type)
		in.Type = &t
	}
	if req.Amount != nil {
		amount, err := ledger.NewMoneyFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount", err)
			return
		}
		in.Amount = &amount
	}
	if req.Date != nil {
		date, err := time.Parse(time.RFC3339, *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want RFC3339", err)
			return
		}
		in.Date = &date
	}
	if req.RecurringInterval != nil {
		interval := ledger.RecurringInterval(*req.RecurringInterval)
		in.RecurringInterval = &interval
	}

	tx, err := h.Manager.UpdateTransaction(r.Context(), uid, ledger.TransactionID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction and reverts its balance effect.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.Manager.DeleteTransaction(r.Context(), uid, ledger.TransactionID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BUDGET ENDPOINTS
// =============================================================================

// GetBudget returns the caller's budget.
// GET /api/budget
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	b, err := h.Manager.GetBudget(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// CreateBudget sets the caller's monthly limit.
// POST /api/budget
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	amount, ok2 := decodeBudgetAmount(w, r)
	if !ok2 {
		return
	}
	b, err := h.Manager.CreateBudget(r.Context(), uid, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(b))
}

// UpdateBudget changes the monthly limit.
// PUT /api/budget
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	amount, ok2 := decodeBudgetAmount(w, r)
	if !ok2 {
		return
	}
	b, err := h.Manager.UpdateBudget(r.Context(), uid, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// DeleteBudget removes the caller's budget.
// DELETE /api/budget
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.Manager.DeleteBudget(r.Context(), uid); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBudgetAmount(w http.ResponseWriter, r *http.Request) (ledger.Money, bool) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return ledger.Zero, false
	}
	amount, err := ledger.NewMoneyFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return ledger.Zero, false
	}
	return amount, true
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// RunSweep triggers one recurring-transaction sweep.
// POST /api/admin/sweep
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunBudgetAlerts triggers one budget threshold check.
// POST /api/admin/budget-alerts
func (h *Handler) RunBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Monitor.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "budget check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts_fired": len(alerts)})
}

// Healthz is a liveness probe.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger error classes to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
