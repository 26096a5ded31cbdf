/*
Package sweep materializes due recurring templates and monitors budgets.

engine.go - Recurring-transaction sweep

PURPOSE:
  Finds every template whose next-due date has passed and materializes one
  instance per template, advancing each template by exactly one interval.
  A failing item is logged and skipped; it never aborts the run.

CONCURRENCY:
  Multiple engine instances may run concurrently against the same store.
  The per-template claim (conditional advance of the due date) guarantees
  each occurrence is materialized exactly once; the loser counts a skip.

SEE ALSO:
  - ledger/manager.go: Materialize, the per-item unit of work
  - alerts.go: budget threshold monitoring
  - scheduler.go: cron wiring for both jobs
*/
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/spendsense/finance-engine/ledger"
)

// Engine runs the recurring-transaction sweep.
type Engine struct {
	store   ledger.Store
	manager *ledger.Manager
	log     zerolog.Logger

	// Clock returns the current time; nil means time.Now. Tests override it.
	Clock func() time.Time
}

// NewEngine creates a sweep engine over the given store and manager.
func NewEngine(store ledger.Store, manager *ledger.Manager, log zerolog.Logger) *Engine {
	return &Engine{store: store, manager: manager, log: log}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// Result summarizes one sweep run.
type Result struct {
	Due       int `json:"due"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Run performs one sweep pass: query due templates, materialize each.
// Returns an error only when the due query itself fails; per-item failures
// are isolated into Result.Failed.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	now := e.now()

	due, err := e.store.FindDueTemplates(ctx, now)
	if err != nil {
		return Result{}, err
	}

	res := Result{Due: len(due)}
	if len(due) == 0 {
		e.log.Debug().Time("now", now).Msg("sweep: nothing due")
		return res, nil
	}

	e.log.Info().Int("due", len(due)).Time("now", now).Msg("sweep: starting")

	for _, tmpl := range due {
		instance, claimed, err := e.manager.Materialize(ctx, tmpl, now)
		if err != nil {
			res.Failed++
			e.log.Error().Err(err).
				Str("template_id", string(tmpl.ID)).
				Str("account_id", string(tmpl.AccountID)).
				Msg("sweep: template failed")
			continue
		}
		if !claimed {
			res.Skipped++
			e.log.Debug().
				Str("template_id", string(tmpl.ID)).
				Msg("sweep: already claimed by another run")
			continue
		}
		res.Processed++
		e.log.Info().
			Str("template_id", string(tmpl.ID)).
			Str("instance_id", string(instance.ID)).
			Str("amount", instance.Amount.String()).
			Msg("sweep: materialized")
	}

	e.log.Info().
		Int("due", res.Due).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("sweep: finished")
	return res, nil
}
