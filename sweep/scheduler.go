/*
scheduler.go - Cron wiring for the background jobs

Runs the recurring sweep and the budget-alert check on cron schedules.
Both jobs are also exposed through admin endpoints for manual triggering;
this file only owns the timing.
*/
package sweep

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler drives the sweep engine and budget monitor on cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	monitor *BudgetMonitor
	log     zerolog.Logger
}

// NewScheduler registers both jobs. Standard 5-field cron expressions.
func NewScheduler(engine *Engine, monitor *BudgetMonitor, sweepSpec, alertSpec string, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		engine:  engine,
		monitor: monitor,
		log:     log,
	}

	if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(alertSpec, s.runAlerts); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Info().Msg("scheduler: starting")
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) runSweep() {
	if _, err := s.engine.Run(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("scheduler: sweep run failed")
	}
}

func (s *Scheduler) runAlerts() {
	if _, err := s.monitor.Run(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("scheduler: budget alert run failed")
	}
}
