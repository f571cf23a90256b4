package queue

import (
	"context"
	"sync"
)

// MemoryClient keeps sent messages in memory. Used in dev and tests.
type MemoryClient struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned by Send instead of recording.
	Err error
}

// Send implements Client.
func (m *MemoryClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of every recorded message.
func (m *MemoryClient) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

var _ Client = (*MemoryClient)(nil)
