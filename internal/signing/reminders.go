package signing

import (
	"context"
	"time"

	"esign-backend/internal/audit"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/telemetry"
)

const DefaultReminderAfterDays = 3

// ReminderOptions controls a reminder run.
type ReminderOptions struct {
	AfterDays int
	Now       time.Time
}

// ReminderReport summarizes a reminder run.
type ReminderReport struct {
	Selected int
	Sent     int
	Failed   int
}

// SendReminders nudges unfinished signers whose invitation and last reminder are
// at least AfterDays old. Failures are counted, not retried within the run.
func (s *Service) SendReminders(ctx context.Context, opts ReminderOptions) (ReminderReport, error) {
	days := opts.AfterDays
	if days <= 0 {
		days = DefaultReminderAfterDays
	}
	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	candidates, err := s.Store.DueReminders(ctx, cutoff)
	if err != nil {
		return ReminderReport{}, persistence(err)
	}

	report := ReminderReport{Selected: len(candidates)}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.invite(ctx, c.Document, c.Signer, notify.KindSignerReminder, audit.SystemOrigin)
		if res.Success {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	telemetry.Info("signing.reminders_run", map[string]any{
		"cutoff":   cutoff.Format(time.RFC3339),
		"selected": report.Selected,
		"sent":     report.Sent,
		"failed":   report.Failed,
	})
	return report, nil
}
