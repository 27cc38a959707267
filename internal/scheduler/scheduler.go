// Package scheduler provides scheduling logic for CareWatch.
//
// It runs the periodic reminder due-time sweep and any other recurring jobs
// using cron expressions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/CareWatch/internal/store"
)

// DefaultSweepExpr sweeps due reminders once a minute.
const DefaultSweepExpr = "* * * * *"

// sweepTimeout bounds one sweep against the store.
const sweepTimeout = 10 * time.Second

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleSweep registers the periodic reminder sweep against the given
// store. Transitioned reminders are logged; sweep failures do not stop the
// schedule.
func (s *Scheduler) ScheduleSweep(expr string, st store.Store) error {
	if expr == "" {
		expr = DefaultSweepExpr
	}
	return s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		triggered, err := st.TriggerDue(ctx, time.Now().UTC())
		if err != nil {
			slog.Error("Scheduler.ScheduleSweep: sweep failed", "error", err)
			return
		}
		if len(triggered) > 0 {
			slog.Info("Scheduler.ScheduleSweep: reminders triggered", "count", len(triggered))
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
