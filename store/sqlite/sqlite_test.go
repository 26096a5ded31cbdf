package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-engine/ledger"
	"github.com/spendsense/finance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedUser(t *testing.T, s *sqlite.Store) ledger.UserID {
	t.Helper()
	now := date(2026, time.January, 1)
	u := ledger.User{ID: ledger.NewUserID(), Email: "test@example.com", Name: "Test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.SaveUser(context.Background(), u))
	return u.ID
}

func seedStoreAccount(t *testing.T, s *sqlite.Store, owner ledger.UserID, balance string) ledger.AccountID {
	t.Helper()
	now := date(2026, time.January, 1)
	a := ledger.Account{
		ID: ledger.NewAccountID(), UserID: owner, Name: "Checking",
		Type: ledger.AccountChecking, Balance: ledger.MustMoney(balance),
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveAccount(context.Background(), a))
	return a.ID
}

func storeTx(owner ledger.UserID, acc ledger.AccountID, typ ledger.TransactionType, amount string, on time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID: ledger.NewTransactionID(), UserID: owner, AccountID: acc,
		Type: typ, Amount: ledger.MustMoney(amount), Date: on,
		Status: ledger.StatusCompleted, CreatedAt: on, UpdatedAt: on,
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestSQLite_TransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	interval := ledger.IntervalMonthly
	next := date(2026, time.February, 28)
	processed := date(2026, time.January, 29)
	tx := storeTx(owner, acc, ledger.TypeExpense, "85.50", date(2026, time.January, 31))
	tx.Description = "rent"
	tx.Category = "housing"
	tx.IsRecurring = true
	tx.RecurringInterval = &interval
	tx.NextRecurringDate = &next
	tx.LastProcessed = &processed

	require.NoError(t, s.InsertTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.Amount.Equal(tx.Amount))
	assert.Equal(t, "rent", got.Description)
	assert.Equal(t, "housing", got.Category)
	assert.True(t, got.IsRecurring)
	require.NotNil(t, got.RecurringInterval)
	assert.Equal(t, ledger.IntervalMonthly, *got.RecurringInterval)
	require.NotNil(t, got.NextRecurringDate)
	assert.True(t, next.Equal(*got.NextRecurringDate))
	require.NotNil(t, got.LastProcessed)
	assert.True(t, processed.Equal(*got.LastProcessed))

	// Wrong owner sees nothing
	got, err = s.GetTransaction(ctx, tx.ID, "someone-else")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SaveAccountNeverTouchesBalanceOnUpdate(t *testing.T) {
	// GIVEN: A stored account
	// WHEN:  Saving it again with a doctored balance and version
	// THEN:  Name changes; balance and version keep their stored values

	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	stored, err := s.GetAccount(ctx, acc, owner)
	require.NoError(t, err)
	stored.Name = "Renamed"
	stored.Balance = ledger.MustMoney("999999.00")
	stored.Version = 42
	require.NoError(t, s.SaveAccount(ctx, *stored))

	got, err := s.GetAccount(ctx, acc, owner)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.Balance.Equal(ledger.MustMoney("1000.00")))
	assert.Equal(t, int64(1), got.Version)
}

// =============================================================================
// OPTIMISTIC LOCKING
// =============================================================================

func TestSQLite_BalanceCAS(t *testing.T) {
	// GIVEN: An account at version 1
	// WHEN:  Updating with the right, then a stale version
	// THEN:  First succeeds and bumps the version; second conflicts

	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	require.NoError(t, s.UpdateAccountBalance(ctx, acc, ledger.MustMoney("900.00"), 1))

	got, err := s.GetAccount(ctx, acc, owner)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(ledger.MustMoney("900.00")))
	assert.Equal(t, int64(2), got.Version)

	err = s.UpdateAccountBalance(ctx, acc, ledger.MustMoney("800.00"), 1)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.True(t, ledger.IsRetryable(err))
}

// =============================================================================
// SWEEP QUERIES
// =============================================================================

func TestSQLite_FindDueTemplatesStrictlyBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	interval := ledger.IntervalMonthly
	mkTemplate := func(next time.Time) ledger.Transaction {
		tx := storeTx(owner, acc, ledger.TypeExpense, "10.00", date(2026, time.January, 1))
		tx.IsRecurring = true
		tx.RecurringInterval = &interval
		tx.NextRecurringDate = &next
		return tx
	}

	past := mkTemplate(date(2026, time.February, 10))
	atNow := mkTemplate(date(2026, time.February, 16))
	future := mkTemplate(date(2026, time.March, 1))
	oneOff := storeTx(owner, acc, ledger.TypeExpense, "10.00", date(2026, time.January, 1))

	for _, tx := range []ledger.Transaction{past, atNow, future, oneOff} {
		require.NoError(t, s.InsertTransaction(ctx, tx))
	}

	due, err := s.FindDueTemplates(ctx, date(2026, time.February, 16))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)
}

func TestSQLite_ClaimTemplateIsConditional(t *testing.T) {
	// GIVEN: A template due Feb 10
	// WHEN:  Two claims race with the same expected date
	// THEN:  Exactly one wins

	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	interval := ledger.IntervalMonthly
	next := date(2026, time.February, 10)
	tx := storeTx(owner, acc, ledger.TypeExpense, "10.00", date(2026, time.January, 10))
	tx.IsRecurring = true
	tx.RecurringInterval = &interval
	tx.NextRecurringDate = &next
	require.NoError(t, s.InsertTransaction(ctx, tx))

	newNext := date(2026, time.March, 10)
	processedAt := date(2026, time.February, 16)

	won, err := s.ClaimTemplate(ctx, tx.ID, next, newNext, processedAt)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.ClaimTemplate(ctx, tx.ID, next, newNext, processedAt)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetTransaction(ctx, tx.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got.NextRecurringDate)
	assert.True(t, newNext.Equal(*got.NextRecurringDate))
	require.NotNil(t, got.LastProcessed)
	assert.True(t, processedAt.Equal(*got.LastProcessed))
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A unit writing a balance and a transaction
	// WHEN:  The unit fails after the balance write
	// THEN:  Neither write survives

	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	boom := errors.New("boom")
	tx := storeTx(owner, acc, ledger.TypeExpense, "100.00", date(2026, time.January, 5))

	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.UpdateAccountBalance(ctx, acc, ledger.MustMoney("900.00"), 1); err != nil {
			return err
		}
		if err := st.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, acc, owner)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(ledger.MustMoney("1000.00")))
	assert.Equal(t, int64(1), got.Version)

	stored, err := s.GetTransaction(ctx, tx.ID, owner)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSQLite_DeleteAccountCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	tx := storeTx(owner, acc, ledger.TypeExpense, "10.00", date(2026, time.January, 5))
	require.NoError(t, s.InsertTransaction(ctx, tx))

	require.NoError(t, s.DeleteAccount(ctx, acc))

	gotAcc, err := s.GetAccount(ctx, acc, owner)
	require.NoError(t, err)
	assert.Nil(t, gotAcc)

	gotTx, err := s.GetTransaction(ctx, tx.ID, owner)
	require.NoError(t, err)
	assert.Nil(t, gotTx)
}

// =============================================================================
// BUDGETS & EXPENSE WINDOW
// =============================================================================

func TestSQLite_SumExpensesWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	acc := seedStoreAccount(t, s, owner, "1000.00")

	// In window
	require.NoError(t, s.InsertTransaction(ctx, storeTx(owner, acc, ledger.TypeExpense, "100.50", date(2026, time.March, 5))))
	require.NoError(t, s.InsertTransaction(ctx, storeTx(owner, acc, ledger.TypeExpense, "49.50", date(2026, time.March, 20))))
	// Income never counts
	require.NoError(t, s.InsertTransaction(ctx, storeTx(owner, acc, ledger.TypeIncome, "500.00", date(2026, time.March, 10))))
	// Outside the window
	require.NoError(t, s.InsertTransaction(ctx, storeTx(owner, acc, ledger.TypeExpense, "77.00", date(2026, time.February, 25))))
	require.NoError(t, s.InsertTransaction(ctx, storeTx(owner, acc, ledger.TypeExpense, "88.00", date(2026, time.April, 1))))

	total, err := s.SumExpenses(ctx, owner, date(2026, time.March, 1), date(2026, time.April, 1))
	require.NoError(t, err)
	assert.True(t, total.Equal(ledger.MustMoney("150.00")))
}

func TestSQLite_BudgetRoundTripAndAlertStamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s)

	now := date(2026, time.March, 1)
	b := ledger.Budget{ID: ledger.NewBudgetID(), UserID: owner, Amount: ledger.MustMoney("2000.00"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.SaveBudget(ctx, b))

	got, err := s.GetBudget(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(b.Amount))
	assert.Nil(t, got.LastAlertSent)

	at := date(2026, time.March, 20)
	require.NoError(t, s.MarkBudgetAlerted(ctx, b.ID, at))

	got, err = s.GetBudget(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got.LastAlertSent)
	assert.True(t, at.Equal(*got.LastAlertSent))

	assert.ErrorIs(t, s.MarkBudgetAlerted(ctx, "missing", at), ledger.ErrBudgetNotFound)
}
