package notify

import (
	"context"
	"strings"
	"sync"
)

// Recorder captures messages in memory. Addresses listed in Fail are rejected.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Fail map[string]bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Fail: map[string]bool{}}
}

// Send implements Notifier.
func (r *Recorder) Send(ctx context.Context, msg Message) Result {
	if err := validate(msg); err != nil {
		return Failed(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, to := range msg.To {
		if r.Fail[strings.ToLower(to)] {
			return Result{Message: "delivery rejected for " + to}
		}
	}
	r.sent = append(r.sent, msg)
	return Ok()
}

// Sent returns every accepted message in send order.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind filters accepted messages by kind.
func (r *Recorder) OfKind(kind Kind) []Message {
	var out []Message
	for _, m := range r.Sent() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// FailFor makes every later send to addr fail.
func (r *Recorder) FailFor(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail == nil {
		r.Fail = map[string]bool{}
	}
	r.Fail[strings.ToLower(addr)] = true
}

var _ Notifier = (*Recorder)(nil)
