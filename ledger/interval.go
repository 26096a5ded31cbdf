/*
interval.go - Recurring interval calendar arithmetic

PURPOSE:
  Pure function mapping (timestamp, interval) -> next timestamp. This is
  the only place calendar rules live; both the lifecycle manager (computing
  a new template's first due date) and the sweep engine (advancing a
  template after materialization) call it.

CALENDAR RULES:
  DAILY    +1 calendar day
  WEEKLY   +7 calendar days
  MONTHLY  +1 calendar month, clamped to the last valid day of the target
           month (Jan 31 -> Feb 28/29)
  YEARLY   +1 calendar year, Feb 29 clamped to Feb 28 on non-leap years

  Note time.Time.AddDate does NOT clamp - it normalizes Jan 31 + 1 month to
  Mar 2/3 - so month and year advancement is done by hand.

An unrecognized interval is a programming error and panics.
*/
package ledger

import (
	"fmt"
	"time"
)

// NextOccurrence advances a timestamp by one recurring interval.
func NextOccurrence(t time.Time, interval RecurringInterval) time.Time {
	switch interval {
	case IntervalDaily:
		return t.AddDate(0, 0, 1)
	case IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case IntervalMonthly:
		return addMonthsClamped(t, 1)
	case IntervalYearly:
		return addMonthsClamped(t, 12)
	default:
		panic(fmt.Sprintf("ledger: unknown recurring interval %q", interval))
	}
}

// addMonthsClamped adds n months, keeping the day-of-month but clamping it
// to the last valid day of the target month.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	// Anchor at day 1 so AddDate cannot overflow into the following month.
	anchor := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in a month. Day 0 of the next
// month is the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
