package notify

import (
	"context"

	"esign-backend/internal/shared/telemetry"
)

// LogNotifier writes notices to the structured log instead of delivering them.
type LogNotifier struct{}

// Send implements Notifier.
func (LogNotifier) Send(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	if err := validate(msg); err != nil {
		telemetry.Warn("notify.invalid", map[string]any{"kind": string(msg.Kind), "error": err.Error()})
		return Failed(err)
	}

	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	telemetry.Info("notify.send", map[string]any{
		"kind":        string(msg.Kind),
		"to":          Dedupe(msg.To...),
		"attachments": names,
		"context":     msg.Context,
	})
	return Ok()
}

var _ Notifier = LogNotifier{}
