package notify

import (
	"context"
	"time"

	"esign-backend/internal/queue"
	"esign-backend/internal/shared/telemetry"
)

// QueueNotifier hands notices to a mail delivery consumer over a queue.
type QueueNotifier struct {
	Client queue.Client
	Now    func() time.Time
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(client queue.Client) *QueueNotifier {
	return &QueueNotifier{Client: client, Now: time.Now}
}

// Send implements Notifier.
func (q *QueueNotifier) Send(ctx context.Context, msg Message) Result {
	if err := validate(msg); err != nil {
		return Failed(err)
	}
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}

	attachments := make([]queue.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, queue.Attachment{Name: a.Name, Path: a.Path, URL: a.URL})
	}
	payload := queue.Message{
		Kind: queue.KindNotification,
		Notification: &queue.Notification{
			Kind:        string(msg.Kind),
			To:          Dedupe(msg.To...),
			Context:     msg.Context,
			Attachments: attachments,
		},
		EnqueuedAt: now().UTC().Format(time.RFC3339),
		Version:    queue.CurrentVersion,
	}
	if id, ok := msg.Context["document_id"].(string); ok {
		payload.DocumentID = id
	}

	if err := q.Client.Send(ctx, payload); err != nil {
		telemetry.Error("notify.enqueue_failed", map[string]any{"kind": string(msg.Kind), "error": err.Error()})
		return Failed(err)
	}
	return Ok()
}

var _ Notifier = (*QueueNotifier)(nil)
