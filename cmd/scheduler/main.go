package main

// Run the reminder and purge jobs:
//   go run ./cmd/scheduler            # loop on REMINDER_INTERVAL / PURGE_INTERVAL
//   go run ./cmd/scheduler -once -job purge -dry-run

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/scheduler"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/storage/db"
	"esign-backend/internal/shared/telemetry"
)

func main() {
	once := flag.Bool("once", false, "run the selected jobs once and exit")
	job := flag.String("job", "", "job to run: reminders or purge (default: both)")
	dryRun := flag.Bool("dry-run", false, "report purge candidates without deleting and skip reminders")
	days := flag.Int("days", 0, "override the age window in days for the selected job")
	flag.Parse()

	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildRole(ctx, cfg, db.RoleScheduler)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	s := newScheduler(app, cfg, *dryRun)
	if *days > 0 {
		switch *job {
		case scheduler.JobReminders:
			s.ReminderAfterDays = *days
		case scheduler.JobPurge:
			s.PurgeAfterDays = *days
		default:
			log.Fatal("-days requires -job")
		}
	}

	if !*once {
		log.Printf("scheduler started reminders=%s purge=%s", s.ReminderInterval, s.PurgeInterval)
		s.Loop(ctx)
		return
	}

	if *job != "" {
		err = s.RunJob(ctx, *job)
	} else {
		err = s.RunAll(ctx)
	}
	if err != nil {
		log.Printf("scheduler: %v", err)
		os.Exit(1)
	}
}

func newScheduler(app *bootstrap.App, cfg config.Config, dryRun bool) *scheduler.Scheduler {
	return &scheduler.Scheduler{
		Svc:               app.SigningService,
		Locker:            app.Locker,
		ReminderAfterDays: cfg.ReminderAfterDays,
		PurgeAfterDays:    cfg.PurgeAfterDays,
		ReminderInterval:  cfg.ReminderInterval,
		PurgeInterval:     cfg.PurgeInterval,
		DryRun:            dryRun,
	}
}
