package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"esign-backend/internal/joblock"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/signing"
)

const (
	JobReminders = "reminders"
	JobPurge     = "purge"
)

// Maintenance is the part of the signing service the scheduler drives.
type Maintenance interface {
	SendReminders(ctx context.Context, opts signing.ReminderOptions) (signing.ReminderReport, error)
	PurgeExpired(ctx context.Context, opts signing.PurgeOptions) (signing.PurgeReport, error)
}

// Scheduler runs the periodic reminder and purge jobs under named locks.
type Scheduler struct {
	Svc               Maintenance
	Locker            joblock.Locker
	ReminderAfterDays int
	PurgeAfterDays    int
	ReminderInterval  time.Duration
	PurgeInterval     time.Duration
	DryRun            bool
}

// RunJob executes one named job. A run skipped because another holds the lock is not an error.
func (s *Scheduler) RunJob(ctx context.Context, job string) error {
	var fn func(ctx context.Context) error
	switch job {
	case JobReminders:
		fn = s.reminders
	case JobPurge:
		fn = s.purge
	default:
		return fmt.Errorf("unknown job %q", job)
	}

	err := joblock.Run(ctx, s.Locker, "esign."+job, fn)
	if errors.Is(err, joblock.ErrLocked) {
		return nil
	}
	return err
}

// RunAll executes every job once, returning the first failure after trying all.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var first error
	for _, job := range []string{JobReminders, JobPurge} {
		if err := s.RunJob(ctx, job); err != nil {
			telemetry.Error("scheduler.job_failed", map[string]any{"job": job, "error": err.Error()})
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Loop runs each job on its interval until ctx is cancelled. Both run once at start.
func (s *Scheduler) Loop(ctx context.Context) {
	reminders := time.NewTicker(positive(s.ReminderInterval, 24*time.Hour))
	defer reminders.Stop()
	purge := time.NewTicker(positive(s.PurgeInterval, 24*time.Hour))
	defer purge.Stop()

	_ = s.RunAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-reminders.C:
			s.logFailure(JobReminders, s.RunJob(ctx, JobReminders))
		case <-purge.C:
			s.logFailure(JobPurge, s.RunJob(ctx, JobPurge))
		}
	}
}

func (s *Scheduler) reminders(ctx context.Context) error {
	if s.DryRun {
		telemetry.Info("scheduler.reminders_skipped", map[string]any{"reason": "dry_run"})
		return nil
	}
	report, err := s.Svc.SendReminders(ctx, signing.ReminderOptions{AfterDays: s.ReminderAfterDays})
	if err != nil {
		return err
	}
	telemetry.Info("scheduler.reminders_done", map[string]any{
		"selected": report.Selected,
		"sent":     report.Sent,
		"failed":   report.Failed,
	})
	return nil
}

func (s *Scheduler) purge(ctx context.Context) error {
	report, err := s.Svc.PurgeExpired(ctx, signing.PurgeOptions{AfterDays: s.PurgeAfterDays, DryRun: s.DryRun})
	if err != nil {
		return err
	}
	telemetry.Info("scheduler.purge_done", map[string]any{
		"selected": report.Selected,
		"deleted":  report.Deleted,
		"failed":   report.Failed,
		"dry_run":  report.DryRun,
	})
	return nil
}

func (s *Scheduler) logFailure(job string, err error) {
	if err != nil {
		telemetry.Error("scheduler.job_failed", map[string]any{"job": job, "error": err.Error()})
	}
}

func positive(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
