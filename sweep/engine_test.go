package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-engine/ledger"
	"github.com/spendsense/finance-engine/ledger/store"
	"github.com/spendsense/finance-engine/sweep"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, now time.Time) (*sweep.Engine, *ledger.Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	manager := ledger.NewManager(mem)
	manager.Clock = func() time.Time { return now }
	engine := sweep.NewEngine(mem, manager, zerolog.Nop())
	engine.Clock = func() time.Time { return now }
	return engine, manager, mem
}

func seedAccount(t *testing.T, m *ledger.Manager, opening string) (ledger.UserID, ledger.AccountID) {
	t.Helper()
	ctx := context.Background()
	user, err := m.CreateUser(ctx, ledger.CreateUserInput{Email: "test@example.com", Name: "Test"})
	require.NoError(t, err)
	account, err := m.CreateAccount(ctx, user.ID, ledger.CreateAccountInput{
		Name: "Checking", Type: ledger.AccountChecking, OpeningBalance: ledger.MustMoney(opening),
	})
	require.NoError(t, err)
	return user.ID, account.ID
}

func balance(t *testing.T, m *ledger.Manager, owner ledger.UserID, id ledger.AccountID) ledger.Money {
	t.Helper()
	account, err := m.GetAccount(context.Background(), owner, id)
	require.NoError(t, err)
	return account.Balance
}

func monthly() *ledger.RecurringInterval {
	i := ledger.IntervalMonthly
	return &i
}

func daily() *ledger.RecurringInterval {
	i := ledger.IntervalDaily
	return &i
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func TestSweep_EndToEnd(t *testing.T) {
	// GIVEN: An account with opening 1000, a monthly expense template of 150
	//        and a monthly income template of 2000, both past due
	// WHEN:  Running one sweep
	// THEN:  Each template posts one instance: 1000 - 150 + 2000 (creation)
	//        - 150 + 2000 (sweep) = 4700

	now := date(2026, time.February, 16)
	engine, manager, _ := newTestEngine(t, now)
	owner, acc := seedAccount(t, manager, "1000.00")
	ctx := context.Background()

	_, err := manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: acc, Type: ledger.TypeExpense, Amount: ledger.MustMoney("150.00"),
		Date: date(2026, time.January, 10), IsRecurring: true, RecurringInterval: monthly(),
	})
	require.NoError(t, err)
	require.True(t, balance(t, manager, owner, acc).Equal(ledger.MustMoney("850.00")))

	_, err = manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: acc, Type: ledger.TypeIncome, Amount: ledger.MustMoney("2000.00"),
		Date: date(2026, time.January, 12), IsRecurring: true, RecurringInterval: monthly(),
	})
	require.NoError(t, err)
	require.True(t, balance(t, manager, owner, acc).Equal(ledger.MustMoney("2850.00")))

	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Due)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, balance(t, manager, owner, acc).Equal(ledger.MustMoney("4700.00")))

	// Both materialized instances plus the two templates
	txs, err := manager.ListTransactions(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, txs, 4)
}

func TestSweep_StrictlyBeforeNow(t *testing.T) {
	// GIVEN: A template whose next due date is exactly now
	// WHEN:  Running the sweep
	// THEN:  Nothing happens - due means strictly before now

	now := date(2026, time.February, 10)
	engine, manager, _ := newTestEngine(t, now)
	owner, acc := seedAccount(t, manager, "1000.00")
	ctx := context.Background()

	// Jan 10 monthly -> next due Feb 10 == now
	_, err := manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: acc, Type: ledger.TypeExpense, Amount: ledger.MustMoney("50.00"),
		Date: date(2026, time.January, 10), IsRecurring: true, RecurringInterval: monthly(),
	})
	require.NoError(t, err)

	result, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
	assert.True(t, balance(t, manager, owner, acc).Equal(ledger.MustMoney("950.00")))
}

func TestSweep_AdvancesOneIntervalPerRun(t *testing.T) {
	// GIVEN: A daily template two intervals behind
	// WHEN:  Running the sweep twice
	// THEN:  Each run posts one instance; the template catches up one
	//        interval at a time

	now := date(2026, time.January, 3)
	engine, manager, _ := newTestEngine(t, now)
	owner, acc := seedAccount(t, manager, "100.00")
	ctx := context.Background()

	// Jan 1 daily -> next due Jan 2, which is before Jan 3
	_, err := manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: acc, Type: ledger.TypeExpense, Amount: ledger.MustMoney("10.00"),
		Date: date(2026, time.January, 1), IsRecurring: true, RecurringInterval: daily(),
	})
	require.NoError(t, err)

	result, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	// Advanced Jan 2 -> Jan 3; not strictly before now, so the second run
	// finds nothing.
	result, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)

	assert.True(t, balance(t, manager, owner, acc).Equal(ledger.MustMoney("80.00")))
}

func TestSweep_FailureIsolation(t *testing.T) {
	// GIVEN: Two due templates, one pointing at a deleted account
	// WHEN:  Running the sweep
	// THEN:  The healthy template processes; the broken one counts a
	//        failure and does not abort the run

	now := date(2026, time.February, 16)
	engine, manager, mem := newTestEngine(t, now)
	owner, goodAcc := seedAccount(t, manager, "1000.00")
	ctx := context.Background()

	badAcc, err := manager.CreateAccount(ctx, owner, ledger.CreateAccountInput{
		Name: "Doomed", Type: ledger.AccountSavings, OpeningBalance: ledger.MustMoney("500.00"),
	})
	require.NoError(t, err)

	_, err = manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: goodAcc, Type: ledger.TypeExpense, Amount: ledger.MustMoney("100.00"),
		Date: date(2026, time.January, 10), IsRecurring: true, RecurringInterval: monthly(),
	})
	require.NoError(t, err)

	broken, err := manager.CreateTransaction(ctx, owner, ledger.CreateTransactionInput{
		AccountID: badAcc.ID, Type: ledger.TypeExpense, Amount: ledger.MustMoney("100.00"),
		Date: date(2026, time.January, 10), IsRecurring: true, RecurringInterval: monthly(),
	})
	require.NoError(t, err)

	// Drop the account out from under the template; the cascade removes
	// the template row too, so put it back orphaned.
	require.NoError(t, mem.DeleteAccount(ctx, badAcc.ID))
	require.NoError(t, mem.InsertTransaction(ctx, *broken))

	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Due)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, balance(t, manager, owner, goodAcc).Equal(ledger.MustMoney("800.00")))
}

func TestSweep_NothingDue(t *testing.T) {
	now := date(2026, time.January, 1)
	engine, _, _ := newTestEngine(t, now)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sweep.Result{}, result)
}
