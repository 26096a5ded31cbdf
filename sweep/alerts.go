/*
alerts.go - Budget threshold monitoring

PURPOSE:
  Compares each owner's month-to-date expenses against their budget and
  fires a notification at the warning (80%) and critical (95%) thresholds.
  A 24-hour cooldown per budget keeps the job from re-alerting every run.

NOTIFICATION:
  Delivery is behind the Notifier interface; the default LogNotifier writes
  a structured log line. Swapping in an email/push notifier is a wiring
  change, not a monitor change.
*/
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spendsense/finance-engine/ledger"
)

// Alert thresholds, as fractions of the budget amount.
var (
	warningThreshold  = decimal.NewFromFloat(0.80)
	criticalThreshold = decimal.NewFromFloat(0.95)
)

// alertCooldown is the minimum gap between alerts for one budget.
const alertCooldown = 24 * time.Hour

// AlertLevel tags how far over the budget the spending is.
type AlertLevel string

const (
	LevelWarning  AlertLevel = "WARNING"
	LevelCritical AlertLevel = "CRITICAL"
)

// Alert describes one fired budget notification.
type Alert struct {
	UserID  ledger.UserID
	Level   AlertLevel
	Budget  ledger.Money
	Spent   ledger.Money
	Percent float64
}

// Notifier delivers budget alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log. It is the default
// delivery channel; email/push integrations implement Notifier instead.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	n.Log.Warn().
		Str("user_id", string(a.UserID)).
		Str("level", string(a.Level)).
		Str("budget", a.Budget.String()).
		Str("spent", a.Spent.String()).
		Float64("percent", a.Percent).
		Msg("budget alert")
	return nil
}

// BudgetMonitor checks every budget against month-to-date spending.
type BudgetMonitor struct {
	store    ledger.Store
	notifier Notifier
	log      zerolog.Logger

	// Clock returns the current time; nil means time.Now. Tests override it.
	Clock func() time.Time
}

// NewBudgetMonitor creates a monitor delivering through the given notifier.
func NewBudgetMonitor(store ledger.Store, notifier Notifier, log zerolog.Logger) *BudgetMonitor {
	return &BudgetMonitor{store: store, notifier: notifier, log: log}
}

func (b *BudgetMonitor) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}

// Run checks all budgets once and returns the alerts fired. Per-budget
// failures are logged and skipped.
func (b *BudgetMonitor) Run(ctx context.Context) ([]Alert, error) {
	now := b.now()
	budgets, err := b.store.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}

	var fired []Alert
	for _, budget := range budgets {
		alert, err := b.check(ctx, budget, now)
		if err != nil {
			b.log.Error().Err(err).
				Str("budget_id", string(budget.ID)).
				Msg("budget check failed")
			continue
		}
		if alert != nil {
			fired = append(fired, *alert)
		}
	}
	return fired, nil
}

// check evaluates one budget; returns the fired alert or nil.
func (b *BudgetMonitor) check(ctx context.Context, budget ledger.Budget, now time.Time) (*Alert, error) {
	if budget.LastAlertSent != nil && now.Sub(*budget.LastAlertSent) < alertCooldown {
		return nil, nil
	}

	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)
	spent, err := b.store.SumExpenses(ctx, budget.UserID, from, to)
	if err != nil {
		return nil, err
	}

	level, ok := classify(spent, budget.Amount)
	if !ok {
		return nil, nil
	}

	percent, _ := spent.Decimal().Div(budget.Amount.Decimal()).Mul(decimal.NewFromInt(100)).Float64()
	alert := Alert{
		UserID:  budget.UserID,
		Level:   level,
		Budget:  budget.Amount,
		Spent:   spent,
		Percent: percent,
	}
	if err := b.notifier.Notify(ctx, alert); err != nil {
		return nil, err
	}
	if err := b.store.MarkBudgetAlerted(ctx, budget.ID, now); err != nil {
		return nil, err
	}
	return &alert, nil
}

// classify maps spending to an alert level; ok=false means below warning.
func classify(spent, budget ledger.Money) (AlertLevel, bool) {
	if !budget.IsPositive() {
		return "", false
	}
	ratio := spent.Decimal().Div(budget.Decimal())
	switch {
	case ratio.GreaterThanOrEqual(criticalThreshold):
		return LevelCritical, true
	case ratio.GreaterThanOrEqual(warningThreshold):
		return LevelWarning, true
	}
	return "", false
}
