package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"esign-backend/internal/queue"
	"esign-backend/internal/signing"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeFinalizer struct {
	err   error
	calls []string
}

func (f *fakeFinalizer) FinalizeCompletion(ctx context.Context, documentID string) (signing.FinalizeResult, error) {
	f.calls = append(f.calls, documentID)
	return signing.FinalizeResult{}, f.err
}

func finalizeMessage(t *testing.T, id, receipt, documentID string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{Kind: queue.KindFinalizeDocument, DocumentID: documentID, RequestID: "req-" + id})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	f := &fakeFinalizer{}

	handleMessage(context.Background(), client, "queue", f, finalizeMessage(t, "m1", "r1", "doc-1"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(f.calls) != 1 || f.calls[0] != "doc-1" {
		t.Fatalf("unexpected finalize calls %v", f.calls)
	}
}

func TestWorkerDoesNotDeleteOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	f := &fakeFinalizer{err: errors.New("boom")}

	handleMessage(context.Background(), client, "queue", f, finalizeMessage(t, "m2", "r2", "doc-2"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesWhenDocumentGone(t *testing.T) {
	client := &fakeSQS{}
	f := &fakeFinalizer{err: signing.ErrNotFound}

	handleMessage(context.Background(), client, "queue", f, finalizeMessage(t, "m3", "r3", "doc-3"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	f := &fakeFinalizer{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", f, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(f.calls) != 0 {
		t.Fatalf("finalizer must not run for invalid payloads")
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("receiveCount = %d, want 3", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("receiveCount = %d, want 0", got)
	}
}
