/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for users, accounts, transactions, and budgets.
  The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  users:        Owner records
  accounts:     Cached balances with a version counter for optimistic locks
  transactions: One-off postings and recurring templates in one table
  budgets:      One monthly limit per owner

OPTIMISTIC LOCKING:
  UpdateAccountBalance is a single conditional UPDATE:
    SET balance=?, version=version+1 WHERE id=? AND version=?
  Zero rows affected maps to ledger.ErrConcurrentModification.

CLAIMING:
  ClaimTemplate conditionally advances a template's next due date:
    SET next_recurring_date=? WHERE id=? AND next_recurring_date=?
  Zero rows affected means another sweep run won the occurrence.

TIME & MONEY ENCODING:
  Timestamps are RFC3339 TEXT. Amounts are decimal strings; SQLite never
  does arithmetic on them, so no float drift.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definition
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/spendsense/finance-engine/ledger"
)

// dbtx is the slice of *sql.DB / *sql.Tx the helpers need, so every
// statement runs identically inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user
		ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		date TEXT NOT NULL,
		category TEXT,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurring_interval TEXT,
		next_recurring_date TEXT,
		last_processed TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, date DESC);

	-- Hot path for the sweep query
	CREATE INDEX IF NOT EXISTS idx_transactions_due
		ON transactions(next_recurring_date)
		WHERE is_recurring = 1 AND next_recurring_date IS NOT NULL;

	-- Month-to-date expense totals for budget monitoring
	CREATE INDEX IF NOT EXISTS idx_transactions_user_type_date
		ON transactions(user_id, tx_type, date);

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		last_alert_sent TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func saveUser(ctx context.Context, db dbtx, u ledger.User) error {
	query := `
		INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name,
		u.CreatedAt.UTC().Format(time.RFC3339),
		u.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, db dbtx, id ledger.UserID) (*ledger.User, error) {
	var (
		u                    ledger.User
		createdAt, updatedAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	// Balance and version are written only on insert; afterwards they move
	// exclusively through updateAccountBalance.
	query := `
		INSERT INTO accounts
			(id, user_id, name, account_type, balance, is_default, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Name, a.Type,
		a.Balance.String(), boolToInt(a.IsDefault), a.Version,
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID, owner ledger.UserID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id, owner)
}

const accountColumns = "id, user_id, name, account_type, balance, is_default, version, created_at, updated_at"

func getAccount(ctx context.Context, db dbtx, id ledger.AccountID, owner ledger.UserID) (*ledger.Account, error) {
	accounts, err := queryAccounts(ctx, db,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ? AND user_id = ?", id, owner)
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func (s *Store) ListAccounts(ctx context.Context, owner ledger.UserID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAccounts(ctx, s.db,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY created_at ASC", owner)
}

func (s *Store) GetDefaultAccount(ctx context.Context, owner ledger.UserID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDefaultAccount(ctx, s.db, owner)
}

func getDefaultAccount(ctx context.Context, db dbtx, owner ledger.UserID) (*ledger.Account, error) {
	accounts, err := queryAccounts(ctx, db,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? AND is_default = 1 LIMIT 1", owner)
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func queryAccounts(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(rows *sql.Rows) (ledger.Account, error) {
	var (
		a                    ledger.Account
		balance              string
		isDefault            int
		createdAt, updatedAt string
	)
	err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type,
		&balance, &isDefault, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return a, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Balance, err = ledger.NewMoneyFromString(balance)
	if err != nil {
		return a, fmt.Errorf("failed to parse balance: %w", err)
	}
	a.IsDefault = isDefault != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccountBalance(ctx, s.db, id, balance, expectedVersion)
}

func updateAccountBalance(ctx context.Context, db dbtx, id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		balance.String(), time.Now().UTC().Format(time.RFC3339), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrConcurrentModification
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAccount(ctx, s.db, id)
}

func deleteAccount(ctx context.Context, db dbtx, id ledger.AccountID) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE account_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete account transactions: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const txColumns = `id, user_id, account_id, tx_type, amount, description, date, category,
	is_recurring, recurring_interval, next_recurring_date, last_processed, status,
	created_at, updated_at`

func (s *Store) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTransaction(ctx, s.db, t)
}

func insertTransaction(ctx context.Context, db dbtx, t ledger.Transaction) error {
	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		t.ID, t.UserID, t.AccountID, t.Type,
		t.Amount.String(), t.Description,
		t.Date.UTC().Format(time.RFC3339), t.Category,
		boolToInt(t.IsRecurring),
		intervalString(t.RecurringInterval),
		nullTime(t.NextRecurringDate),
		nullTime(t.LastProcessed),
		t.Status,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, t)
}

func updateTransaction(ctx context.Context, db dbtx, t ledger.Transaction) error {
	query := `
		UPDATE transactions SET
			tx_type = ?, amount = ?, description = ?, date = ?, category = ?,
			is_recurring = ?, recurring_interval = ?, next_recurring_date = ?,
			last_processed = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		t.Type, t.Amount.String(), t.Description,
		t.Date.UTC().Format(time.RFC3339), t.Category,
		boolToInt(t.IsRecurring),
		intervalString(t.RecurringInterval),
		nullTime(t.NextRecurringDate),
		nullTime(t.LastProcessed),
		t.Status,
		t.UpdatedAt.UTC().Format(time.RFC3339),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID, owner ledger.UserID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id, owner)
}

func getTransaction(ctx context.Context, db dbtx, id ledger.TransactionID, owner ledger.UserID) (*ledger.Transaction, error) {
	txs, err := queryTransactions(ctx, db,
		"SELECT "+txColumns+" FROM transactions WHERE id = ? AND user_id = ?", id, owner)
	if err != nil || len(txs) == 0 {
		return nil, err
	}
	return &txs[0], nil
}

func (s *Store) ListTransactions(ctx context.Context, owner ledger.UserID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db,
		"SELECT "+txColumns+" FROM transactions WHERE user_id = ? ORDER BY date ASC, created_at ASC", owner)
}

func (s *Store) ListAccountTransactions(ctx context.Context, account ledger.AccountID, owner ledger.UserID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db,
		"SELECT "+txColumns+" FROM transactions WHERE account_id = ? AND user_id = ? ORDER BY date ASC, created_at ASC",
		account, owner)
}

func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteTransaction(ctx, s.db, id)
}

func deleteTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *Store) FindDueTemplates(ctx context.Context, now time.Time) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findDueTemplates(ctx, s.db, now)
}

func findDueTemplates(ctx context.Context, db dbtx, now time.Time) ([]ledger.Transaction, error) {
	// Strict less-than: a template due exactly now waits for a later run.
	return queryTransactions(ctx, db, `
		SELECT `+txColumns+` FROM transactions
		WHERE is_recurring = 1
		  AND next_recurring_date IS NOT NULL
		  AND next_recurring_date < ?
		ORDER BY next_recurring_date ASC`,
		now.UTC().Format(time.RFC3339))
}

func (s *Store) ClaimTemplate(ctx context.Context, id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return claimTemplate(ctx, s.db, id, oldNext, newNext, processedAt)
}

func claimTemplate(ctx context.Context, db dbtx, id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE transactions
		SET next_recurring_date = ?, last_processed = ?, updated_at = ?
		WHERE id = ? AND is_recurring = 1 AND next_recurring_date = ?`,
		newNext.UTC().Format(time.RFC3339),
		processedAt.UTC().Format(time.RFC3339),
		processedAt.UTC().Format(time.RFC3339),
		id,
		oldNext.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) SumExpenses(ctx context.Context, owner ledger.UserID, from, to time.Time) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumExpenses(ctx, s.db, owner, from, to)
}

func sumExpenses(ctx context.Context, db dbtx, owner ledger.UserID, from, to time.Time) (ledger.Money, error) {
	// Amounts are decimal TEXT; sum them in Go, not in SQL.
	rows, err := db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE user_id = ? AND tx_type = ? AND date >= ? AND date < ?`,
		owner, ledger.TypeExpense,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return ledger.Zero, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return ledger.Zero, fmt.Errorf("failed to scan expense amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return ledger.Zero, fmt.Errorf("failed to parse expense amount: %w", err)
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return ledger.Zero, err
	}
	return ledger.NewMoney(total), nil
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		t                     ledger.Transaction
		amount, date          string
		description, category sql.NullString
		isRecurring           int
		interval              sql.NullString
		nextDue, processed    sql.NullString
		createdAt, updatedAt  string
	)
	err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Type,
		&amount, &description, &date, &category,
		&isRecurring, &interval, &nextDue, &processed, &t.Status,
		&createdAt, &updatedAt)
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.Amount, err = ledger.NewMoneyFromString(amount)
	if err != nil {
		return t, fmt.Errorf("failed to parse amount: %w", err)
	}
	t.Description = description.String
	t.Category = category.String
	t.Date = parseTime(date)
	t.IsRecurring = isRecurring != 0
	if interval.Valid && interval.String != "" {
		iv := ledger.RecurringInterval(interval.String)
		t.RecurringInterval = &iv
	}
	t.NextRecurringDate = parseNullTime(nextDue)
	t.LastProcessed = parseNullTime(processed)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

const budgetColumns = "id, user_id, amount, last_alert_sent, created_at, updated_at"

func (s *Store) SaveBudget(ctx context.Context, b ledger.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBudget(ctx, s.db, b)
}

func saveBudget(ctx context.Context, db dbtx, b ledger.Budget) error {
	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		b.ID, b.UserID, b.Amount.String(),
		nullTime(b.LastAlertSent),
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, owner ledger.UserID) (*ledger.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBudget(ctx, s.db, owner)
}

func getBudget(ctx context.Context, db dbtx, owner ledger.UserID) (*ledger.Budget, error) {
	budgets, err := queryBudgets(ctx, db,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ?", owner)
	if err != nil || len(budgets) == 0 {
		return nil, err
	}
	return &budgets[0], nil
}

func (s *Store) ListBudgets(ctx context.Context) ([]ledger.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryBudgets(ctx, s.db,
		"SELECT "+budgetColumns+" FROM budgets ORDER BY created_at ASC")
}

func queryBudgets(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Budget, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []ledger.Budget
	for rows.Next() {
		var (
			b                    ledger.Budget
			amount               string
			lastAlert            sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &amount, &lastAlert, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.Amount, err = ledger.NewMoneyFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse budget amount: %w", err)
		}
		b.LastAlertSent = parseNullTime(lastAlert)
		b.CreatedAt = parseTime(createdAt)
		b.UpdatedAt = parseTime(updatedAt)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (s *Store) DeleteBudget(ctx context.Context, id ledger.BudgetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteBudget(ctx, s.db, id)
}

func deleteBudget(ctx context.Context, db dbtx, id ledger.BudgetID) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

func (s *Store) MarkBudgetAlerted(ctx context.Context, id ledger.BudgetID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markBudgetAlerted(ctx, s.db, id, at)
}

func markBudgetAlerted(ctx context.Context, db dbtx, id ledger.BudgetID, at time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE budgets SET last_alert_sent = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark budget alerted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrBudgetNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every Store call through the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveUser(ctx context.Context, u ledger.User) error {
	return saveUser(ctx, ts.tx, u)
}

func (ts *txStore) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return getUser(ctx, ts.tx, id)
}

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID, owner ledger.UserID) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, id, owner)
}

func (ts *txStore) ListAccounts(ctx context.Context, owner ledger.UserID) ([]ledger.Account, error) {
	return queryAccounts(ctx, ts.tx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY created_at ASC", owner)
}

func (ts *txStore) GetDefaultAccount(ctx context.Context, owner ledger.UserID) (*ledger.Account, error) {
	return getDefaultAccount(ctx, ts.tx, owner)
}

func (ts *txStore) UpdateAccountBalance(ctx context.Context, id ledger.AccountID, balance ledger.Money, expectedVersion int64) error {
	return updateAccountBalance(ctx, ts.tx, id, balance, expectedVersion)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return deleteAccount(ctx, ts.tx, id)
}

func (ts *txStore) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	return insertTransaction(ctx, ts.tx, t)
}

func (ts *txStore) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	return updateTransaction(ctx, ts.tx, t)
}

func (ts *txStore) GetTransaction(ctx context.Context, id ledger.TransactionID, owner ledger.UserID) (*ledger.Transaction, error) {
	return getTransaction(ctx, ts.tx, id, owner)
}

func (ts *txStore) ListTransactions(ctx context.Context, owner ledger.UserID) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, ts.tx,
		"SELECT "+txColumns+" FROM transactions WHERE user_id = ? ORDER BY date ASC, created_at ASC", owner)
}

func (ts *txStore) ListAccountTransactions(ctx context.Context, account ledger.AccountID, owner ledger.UserID) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, ts.tx,
		"SELECT "+txColumns+" FROM transactions WHERE account_id = ? AND user_id = ? ORDER BY date ASC, created_at ASC",
		account, owner)
}

func (ts *txStore) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return deleteTransaction(ctx, ts.tx, id)
}

func (ts *txStore) FindDueTemplates(ctx context.Context, now time.Time) ([]ledger.Transaction, error) {
	return findDueTemplates(ctx, ts.tx, now)
}

func (ts *txStore) ClaimTemplate(ctx context.Context, id ledger.TransactionID, oldNext, newNext, processedAt time.Time) (bool, error) {
	return claimTemplate(ctx, ts.tx, id, oldNext, newNext, processedAt)
}

func (ts *txStore) SumExpenses(ctx context.Context, owner ledger.UserID, from, to time.Time) (ledger.Money, error) {
	return sumExpenses(ctx, ts.tx, owner, from, to)
}

func (ts *txStore) SaveBudget(ctx context.Context, b ledger.Budget) error {
	return saveBudget(ctx, ts.tx, b)
}

func (ts *txStore) GetBudget(ctx context.Context, owner ledger.UserID) (*ledger.Budget, error) {
	return getBudget(ctx, ts.tx, owner)
}

func (ts *txStore) ListBudgets(ctx context.Context) ([]ledger.Budget, error) {
	return queryBudgets(ctx, ts.tx,
		"SELECT "+budgetColumns+" FROM budgets ORDER BY created_at ASC")
}

func (ts *txStore) DeleteBudget(ctx context.Context, id ledger.BudgetID) error {
	return deleteBudget(ctx, ts.tx, id)
}

func (ts *txStore) MarkBudgetAlerted(ctx context.Context, id ledger.BudgetID, at time.Time) error {
	return markBudgetAlerted(ctx, ts.tx, id, at)
}

// WithTx joins the already-open transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(store ledger.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intervalString(i *ledger.RecurringInterval) any {
	if i == nil {
		return nil
	}
	return string(*i)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
