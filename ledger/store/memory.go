// Package store provides an in-memory ledger.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spendsense/finance-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store with maps behind one mutex. WithTx takes a
// snapshot of all maps and restores it when fn fails, so multi-write units
// are atomic the same way a database transaction is.
type Memory struct {
	mu           sync.Mutex
	users        map[ledger.UserID]ledger.User
	accounts     map[ledger.AccountID]ledger.Account
	transactions map[ledger.TransactionID]ledger.Transaction
	budgets      map[ledger.BudgetID]ledger.Budget
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[ledger.UserID]ledger.User),
		accounts:     make(map[ledger.AccountID]ledger.Account),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		budgets:      make(map[ledger.BudgetID]ledger.Budget),
	}
}

// ---- users ----

func (m *Memory) SaveUser(_ context.Context, u ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveUser(u)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getUser(id), nil
}

// ---- accounts ----

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAccount(a)
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID, owner ledger.UserID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccount(id, owner), nil
}

func (m *Memory) ListAccounts(_ context.Context, owner ledger.UserID) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Account
	for _, a := range m.accounts {
		if a.UserID == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetDefaultAccount(_ context.Context, owner ledger.UserID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == owner && a.IsDefault {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountBalance(id, balance, expectedVersion)
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAccount(id)
}

// ---- transactions ----

func (m *Memory) InsertTransaction(_ context.Context, t ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransaction(t)
}

func (m *Memory) UpdateTransaction(_ context.Context, t ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransaction(t)
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID, owner ledger.UserID) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTransaction(id, owner), nil
}

func (m *Memory) ListTransactions(_ context.Context, owner ledger.UserID) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range m.transactions {
		if t.UserID == owner {
			out = append(out, t)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *Memory) ListAccountTransactions(_ context.Context, account ledger.AccountID, owner ledger.UserID) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range m.transactions {
		if t.AccountID == account && t.UserID == owner {
			out = append(out, t)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTransaction(id)
}

func (m *Memory) FindDueTemplates(_ context.Context, now time.Time) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range m.transactions {
		// Strict less-than: due at exactly now waits for a later run.
		if t.IsRecurring && t.NextRecurringDate != nil && t.NextRecurringDate.Before(now) {
			out = append(out, t)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *Memory) ClaimTemplate(_ context.Context, id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimTemplate(id, oldNext, newNext, processedAt)
}

func (m *Memory) SumExpenses(_ context.Context, owner ledger.UserID, from, to time.Time) (ledger.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := ledger.Zero
	for _, t := range m.transactions {
		if t.UserID != owner || t.Type != ledger.TypeExpense {
			continue
		}
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

// ---- budgets ----

func (m *Memory) SaveBudget(_ context.Context, b ledger.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.ID] = b
	return nil
}

func (m *Memory) GetBudget(_ context.Context, owner ledger.UserID) (*ledger.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.budgets {
		if b.UserID == owner {
			copied := b
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListBudgets(_ context.Context) ([]ledger.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Budget, 0, len(m.budgets))
	for _, b := range m.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteBudget(_ context.Context, id ledger.BudgetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.budgets, id)
	return nil
}

func (m *Memory) MarkBudgetAlerted(_ context.Context, id ledger.BudgetID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return ledger.ErrBudgetNotFound
	}
	stamp := at
	b.LastAlertSent = &stamp
	m.budgets[id] = b
	return nil
}

// ---- atomicity ----

// WithTx snapshots all maps, runs fn against an unlocked view, and restores
// the snapshot when fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapUsers := copyMap(m.users)
	snapAccounts := copyMap(m.accounts)
	snapTxs := copyMap(m.transactions)
	snapBudgets := copyMap(m.budgets)

	if err := fn(&memTx{m: m}); err != nil {
		m.users = snapUsers
		m.accounts = snapAccounts
		m.transactions = snapTxs
		m.budgets = snapBudgets
		return err
	}
	return nil
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// =============================================================================
// UNLOCKED CORE - shared by the store and its tx view
// =============================================================================

func (m *Memory) saveUser(u ledger.User) {
	m.users[u.ID] = u
}

func (m *Memory) getUser(id ledger.UserID) *ledger.User {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (m *Memory) saveAccount(a ledger.Account) error {
	if existing, ok := m.accounts[a.ID]; ok {
		// Metadata update: the balance path is UpdateAccountBalance only.
		a.Balance = existing.Balance
		a.Version = existing.Version
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) getAccount(id ledger.AccountID, owner ledger.UserID) *ledger.Account {
	a, ok := m.accounts[id]
	if !ok || a.UserID != owner {
		return nil
	}
	return &a
}

func (m *Memory) updateAccountBalance(id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	a, ok := m.accounts[id]
	if !ok || a.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	a.Balance = balance
	a.Version++
	a.UpdatedAt = time.Now()
	m.accounts[id] = a
	return nil
}

func (m *Memory) deleteAccount(id ledger.AccountID) error {
	delete(m.accounts, id)
	for txID, t := range m.transactions {
		if t.AccountID == id {
			delete(m.transactions, txID)
		}
	}
	return nil
}

func (m *Memory) insertTransaction(t ledger.Transaction) error {
	m.transactions[t.ID] = t
	return nil
}

func (m *Memory) updateTransaction(t ledger.Transaction) error {
	if _, ok := m.transactions[t.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	m.transactions[t.ID] = t
	return nil
}

func (m *Memory) getTransaction(id ledger.TransactionID, owner ledger.UserID) *ledger.Transaction {
	t, ok := m.transactions[id]
	if !ok || t.UserID != owner {
		return nil
	}
	return &t
}

func (m *Memory) deleteTransaction(id ledger.TransactionID) error {
	delete(m.transactions, id)
	return nil
}

func (m *Memory) claimTemplate(id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	t, ok := m.transactions[id]
	if !ok || !t.IsRecurring || t.NextRecurringDate == nil || !t.NextRecurringDate.Equal(oldNext) {
		return false, nil
	}
	next := newNext
	stamp := processedAt
	t.NextRecurringDate = &next
	t.LastProcessed = &stamp
	t.UpdatedAt = processedAt
	m.transactions[id] = t
	return true, nil
}

func sortByDate(txs []ledger.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date.Equal(txs[j].Date) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].Date.Before(txs[j].Date)
	})
}

// =============================================================================
// TX VIEW - same data, no locking (the outer WithTx holds the lock)
// =============================================================================

type memTx struct {
	m *Memory
}

func (t *memTx) SaveUser(_ context.Context, u ledger.User) error {
	t.m.saveUser(u)
	return nil
}

func (t *memTx) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	return t.m.getUser(id), nil
}

func (t *memTx) SaveAccount(_ context.Context, a ledger.Account) error {
	return t.m.saveAccount(a)
}

func (t *memTx) GetAccount(_ context.Context, id ledger.AccountID, owner ledger.UserID) (*ledger.Account, error) {
	return t.m.getAccount(id, owner), nil
}

func (t *memTx) ListAccounts(_ context.Context, owner ledger.UserID) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range t.m.accounts {
		if a.UserID == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) GetDefaultAccount(_ context.Context, owner ledger.UserID) (*ledger.Account, error) {
	for _, a := range t.m.accounts {
		if a.UserID == owner && a.IsDefault {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *memTx) UpdateAccountBalance(_ context.Context, id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	return t.m.updateAccountBalance(id, balance, expectedVersion)
}

func (t *memTx) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	return t.m.deleteAccount(id)
}

func (t *memTx) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return t.m.insertTransaction(tx)
}

func (t *memTx) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	return t.m.updateTransaction(tx)
}

func (t *memTx) GetTransaction(_ context.Context, id ledger.TransactionID, owner ledger.UserID) (*ledger.Transaction, error) {
	return t.m.getTransaction(id, owner), nil
}

func (t *memTx) ListTransactions(_ context.Context, owner ledger.UserID) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range t.m.transactions {
		if tx.UserID == owner {
			out = append(out, tx)
		}
	}
	sortByDate(out)
	return out, nil
}

func (t *memTx) ListAccountTransactions(_ context.Context, account ledger.AccountID, owner ledger.UserID) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range t.m.transactions {
		if tx.AccountID == account && tx.UserID == owner {
			out = append(out, tx)
		}
	}
	sortByDate(out)
	return out, nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	return t.m.deleteTransaction(id)
}

func (t *memTx) FindDueTemplates(_ context.Context, now time.Time) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range t.m.transactions {
		if tx.IsRecurring && tx.NextRecurringDate != nil && tx.NextRecurringDate.Before(now) {
			out = append(out, tx)
		}
	}
	sortByDate(out)
	return out, nil
}

func (t *memTx) ClaimTemplate(_ context.Context, id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	return t.m.claimTemplate(id, oldNext, newNext, processedAt)
}

func (t *memTx) SumExpenses(_ context.Context, owner ledger.UserID, from, to time.Time) (ledger.Money, error) {
	total := ledger.Zero
	for _, tx := range t.m.transactions {
		if tx.UserID != owner || tx.Type != ledger.TypeExpense {
			continue
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

func (t *memTx) SaveBudget(_ context.Context, b ledger.Budget) error {
	t.m.budgets[b.ID] = b
	return nil
}

func (t *memTx) GetBudget(_ context.Context, owner ledger.UserID) (*ledger.Budget, error) {
	for _, b := range t.m.budgets {
		if b.UserID == owner {
			copied := b
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *memTx) ListBudgets(_ context.Context) ([]ledger.Budget, error) {
	out := make([]ledger.Budget, 0, len(t.m.budgets))
	for _, b := range t.m.budgets {
		out = append(out, b)
	}
	return out, nil
}

func (t *memTx) DeleteBudget(_ context.Context, id ledger.BudgetID) error {
	delete(t.m.budgets, id)
	return nil
}

func (t *memTx) MarkBudgetAlerted(_ context.Context, id ledger.BudgetID, at time.Time) error {
	b, ok := t.m.budgets[id]
	if !ok {
		return ledger.ErrBudgetNotFound
	}
	stamp := at
	b.LastAlertSent = &stamp
	t.m.budgets[id] = b
	return nil
}

// WithTx joins the outer unit: the snapshot is already held by the caller.
func (t *memTx) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}
