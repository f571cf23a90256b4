package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	return processRecords(ctx, app.SigningService, event.Records), nil
}

// processRecords reports retryable failures; unrecoverable messages are dropped.
func processRecords(ctx context.Context, f workerproc.Finalizer, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncJobsReceived()
		err := workerproc.HandleMessage(ctx, f, record.Body)
		switch {
		case err == nil:
			metrics.IncJobsCompleted()
		case workerproc.Unrecoverable(err):
			telemetry.Error("worker.finalize.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncJobsDroppedUnrecoverable()
		default:
			telemetry.Error("worker.finalize.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
