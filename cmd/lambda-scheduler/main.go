package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-scheduler
//
// Invoke from an EventBridge schedule. The rule's "detail-type" selects the job
// ("reminders" or "purge"); any other value runs both.

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/scheduler"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	sched    *scheduler.Scheduler
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	sched = &scheduler.Scheduler{
		Svc:               app.SigningService,
		Locker:            app.Locker,
		ReminderAfterDays: cfg.ReminderAfterDays,
		PurgeAfterDays:    cfg.PurgeAfterDays,
	}
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return initErr
	}
	return run(ctx, sched, event)
}

func run(ctx context.Context, s *scheduler.Scheduler, event events.CloudWatchEvent) error {
	job := jobFor(event)
	telemetry.Info("scheduler.invoked", map[string]any{"job": job, "event_id": event.ID})
	if job == "" {
		return s.RunAll(ctx)
	}
	return s.RunJob(ctx, job)
}

func jobFor(event events.CloudWatchEvent) string {
	switch strings.ToLower(strings.TrimSpace(event.DetailType)) {
	case scheduler.JobReminders:
		return scheduler.JobReminders
	case scheduler.JobPurge:
		return scheduler.JobPurge
	default:
		return ""
	}
}

func main() {
	lambda.Start(handler)
}
