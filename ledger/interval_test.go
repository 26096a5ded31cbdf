package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spendsense/finance-engine/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// CALENDAR ADVANCEMENT
// =============================================================================

func TestNextOccurrence_DailyAndWeekly(t *testing.T) {
	// GIVEN: A date
	// WHEN: Advancing daily / weekly
	// THEN: Exactly 1 / 7 days later

	base := date(2026, time.March, 15)

	assert.Equal(t, date(2026, time.March, 16), ledger.NextOccurrence(base, ledger.IntervalDaily))
	assert.Equal(t, date(2026, time.March, 22), ledger.NextOccurrence(base, ledger.IntervalWeekly))
}

func TestNextOccurrence_MonthlyClampsToShorterMonth(t *testing.T) {
	// GIVEN: Jan 31
	// WHEN: Advancing monthly
	// THEN: Clamps to the last day of February, never rolls into March

	// Non-leap year: Jan 31 -> Feb 28
	assert.Equal(t, date(2026, time.February, 28),
		ledger.NextOccurrence(date(2026, time.January, 31), ledger.IntervalMonthly))

	// Leap year: Jan 31 -> Feb 29
	assert.Equal(t, date(2024, time.February, 29),
		ledger.NextOccurrence(date(2024, time.January, 31), ledger.IntervalMonthly))

	// 31st into a 30-day month
	assert.Equal(t, date(2026, time.April, 30),
		ledger.NextOccurrence(date(2026, time.March, 31), ledger.IntervalMonthly))
}

func TestNextOccurrence_MonthlyKeepsDayWhenItFits(t *testing.T) {
	// GIVEN: A mid-month date
	// WHEN: Advancing monthly
	// THEN: Same day-of-month next month

	assert.Equal(t, date(2026, time.February, 15),
		ledger.NextOccurrence(date(2026, time.January, 15), ledger.IntervalMonthly))
}

func TestNextOccurrence_YearlyClampsLeapDay(t *testing.T) {
	// GIVEN: Feb 29 of a leap year
	// WHEN: Advancing yearly into a non-leap year
	// THEN: Clamps to Feb 28

	assert.Equal(t, date(2025, time.February, 28),
		ledger.NextOccurrence(date(2024, time.February, 29), ledger.IntervalYearly))

	// A plain date stays put
	assert.Equal(t, date(2027, time.June, 10),
		ledger.NextOccurrence(date(2026, time.June, 10), ledger.IntervalYearly))
}

func TestNextOccurrence_PreservesTimeOfDay(t *testing.T) {
	// GIVEN: A date with a wall-clock time
	// WHEN: Advancing monthly
	// THEN: The time of day is unchanged

	base := time.Date(2026, time.January, 31, 14, 30, 5, 0, time.UTC)
	next := ledger.NextOccurrence(base, ledger.IntervalMonthly)
	assert.Equal(t, time.Date(2026, time.February, 28, 14, 30, 5, 0, time.UTC), next)
}

func TestNextOccurrence_UnknownIntervalPanics(t *testing.T) {
	assert.Panics(t, func() {
		ledger.NextOccurrence(date(2026, time.January, 1), ledger.RecurringInterval("FORTNIGHTLY"))
	})
}
