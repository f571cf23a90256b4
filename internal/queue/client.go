package queue

import "context"

// Client sends messages to a queue backend. Implementations stamp nothing;
// producers set Kind, Version and EnqueuedAt.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

var (
	_ Client = (*SQSClient)(nil)
	_ Client = (*MemoryClient)(nil)
)
