package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-engine/api"
	"github.com/spendsense/finance-engine/ledger"
	"github.com/spendsense/finance-engine/ledger/store"
	"github.com/spendsense/finance-engine/sweep"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router  http.Handler
	manager *ledger.Manager
	owner   ledger.UserID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	manager := ledger.NewManager(mem)
	now := time.Date(2026, time.February, 16, 0, 0, 0, 0, time.UTC)
	manager.Clock = func() time.Time { return now }

	engine := sweep.NewEngine(mem, manager, zerolog.Nop())
	engine.Clock = func() time.Time { return now }
	monitor := sweep.NewBudgetMonitor(mem, sweep.LogNotifier{Log: zerolog.Nop()}, zerolog.Nop())
	monitor.Clock = func() time.Time { return now }

	handler := api.NewHandler(manager, engine, monitor)
	router := api.NewRouter(handler, []string{"http://localhost:3000"})

	user, err := manager.CreateUser(context.Background(), ledger.CreateUserInput{
		Email: "test@example.com", Name: "Test",
	})
	require.NoError(t, err)

	return &testServer{router: router, manager: manager, owner: user.ID}
}

// do sends a request as the test user and decodes the JSON response into out.
func (ts *testServer) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", string(ts.owner))

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (ts *testServer) createAccount(t *testing.T, opening string) api.AccountDTO {
	t.Helper()
	var account api.AccountDTO
	rec := ts.do(t, http.MethodPost, "/api/accounts", api.CreateAccountRequest{
		Name: "Checking", Type: "CHECKING", OpeningBalance: opening,
	}, &account)
	require.Equal(t, http.StatusCreated, rec.Code)
	return account
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAPI_MissingUserHeaderIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAPI_AccountLifecycle(t *testing.T) {
	ts := newTestServer(t)

	account := ts.createAccount(t, "1000.00")
	assert.Equal(t, "1000.00", account.Balance)

	// List
	var accounts []api.AccountDTO
	rec := ts.do(t, http.MethodGet, "/api/accounts", nil, &accounts)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, accounts, 1)

	// Update metadata
	name := "Renamed"
	var updated api.AccountDTO
	rec = ts.do(t, http.MethodPut, "/api/accounts/"+account.ID, api.UpdateAccountRequest{Name: &name}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "1000.00", updated.Balance)

	// Delete
	rec = ts.do(t, http.MethodDelete, "/api/accounts/"+account.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/accounts/"+account.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateAccountRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/accounts", api.CreateAccountRequest{
		Type: "CHECKING",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/accounts", api.CreateAccountRequest{
		Name: "X", Type: "CHECKING", OpeningBalance: "not-a-number",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_TransactionLifecycleMovesBalance(t *testing.T) {
	ts := newTestServer(t)
	account := ts.createAccount(t, "1000.00")

	// Post an expense
	var tx api.TransactionDTO
	rec := ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: account.ID, Type: "EXPENSE", Amount: "150.00", Description: "groceries",
	}, &tx)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "150.00", tx.Amount)
	assert.Equal(t, "COMPLETED", tx.Status)

	// Balance dropped
	var got api.AccountDTO
	rec = ts.do(t, http.MethodGet, "/api/accounts/"+account.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "850.00", got.Balance)

	// Update the amount
	amount := "250.00"
	rec = ts.do(t, http.MethodPut, "/api/transactions/"+tx.ID, api.UpdateTransactionRequest{Amount: &amount}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/accounts/"+account.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "750.00", got.Balance)

	// Delete reverts
	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+tx.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/accounts/"+account.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000.00", got.Balance)
}

func TestAPI_RecurringTransactionValidation(t *testing.T) {
	ts := newTestServer(t)
	account := ts.createAccount(t, "1000.00")

	// Recurring without interval: 400
	rec := ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: account.ID, Type: "EXPENSE", Amount: "50.00",
		Date: "2026-01-15T00:00:00Z", IsRecurring: true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid template carries its schedule in the response
	var tx api.TransactionDTO
	rec = ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: account.ID, Type: "EXPENSE", Amount: "50.00",
		Date: "2026-01-15T00:00:00Z", IsRecurring: true, RecurringInterval: "MONTHLY",
	}, &tx)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, tx.IsRecurring)
	require.NotNil(t, tx.NextRecurringDate)
	assert.Equal(t, "2026-02-15T00:00:00Z", *tx.NextRecurringDate)
}

func TestAPI_AccountTransactionsScopedToAccount(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createAccount(t, "1000.00")
	second := ts.createAccount(t, "500.00")

	rec := ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: first.ID, Type: "EXPENSE", Amount: "10.00",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var txs []api.TransactionDTO
	rec = ts.do(t, http.MethodGet, "/api/accounts/"+first.ID+"/transactions", nil, &txs)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, txs, 1)

	rec = ts.do(t, http.MethodGet, "/api/accounts/"+second.ID+"/transactions", nil, &txs)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, txs)
}

// =============================================================================
// BUDGET
// =============================================================================

func TestAPI_BudgetLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/budget", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var budget api.BudgetDTO
	rec = ts.do(t, http.MethodPost, "/api/budget", api.BudgetRequest{Amount: "2000.00"}, &budget)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2000.00", budget.Amount)

	// Duplicate: 400
	rec = ts.do(t, http.MethodPost, "/api/budget", api.BudgetRequest{Amount: "3000.00"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/budget", api.BudgetRequest{Amount: "2500.00"}, &budget)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2500.00", budget.Amount)

	rec = ts.do(t, http.MethodDelete, "/api/budget", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_AdminSweepMaterializesDueTemplates(t *testing.T) {
	ts := newTestServer(t)
	account := ts.createAccount(t, "1000.00")

	// Monthly template dated Jan 15 -> due Feb 15, before the fixed clock
	// (Feb 16)
	rec := ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: account.ID, Type: "EXPENSE", Amount: "85.50",
		Date: "2026-01-15T00:00:00Z", IsRecurring: true, RecurringInterval: "MONTHLY",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result sweep.Result
	rec = ts.do(t, http.MethodPost, "/api/admin/sweep", nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, result.Processed)

	var got api.AccountDTO
	rec = ts.do(t, http.MethodGet, "/api/accounts/"+account.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	// 1000 - 85.50 (template) - 85.50 (materialized instance)
	assert.Equal(t, "829.00", got.Balance)
}

func TestAPI_AdminBudgetAlerts(t *testing.T) {
	ts := newTestServer(t)
	account := ts.createAccount(t, "10000.00")

	var budget api.BudgetDTO
	rec := ts.do(t, http.MethodPost, "/api/budget", api.BudgetRequest{Amount: "1000.00"}, &budget)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		AccountID: account.ID, Type: "EXPENSE", Amount: "900.00",
		Date: "2026-02-05T00:00:00Z",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]int
	rec = ts.do(t, http.MethodPost, "/api/admin/budget-alerts", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp["alerts_fired"])
}
