package joblock

import (
	"context"
	"errors"
	"sync"

	"esign-backend/internal/shared/telemetry"
)

// ErrLocked means another run currently holds the named lock.
var ErrLocked = errors.New("job already running")

// Locker hands out named, non-blocking locks.
type Locker interface {
	// TryLock returns a release func when the lock was taken, or ok=false when it is held.
	TryLock(ctx context.Context, name string) (release func(), ok bool, err error)
}

// Run executes fn while holding the named lock.
func Run(ctx context.Context, locker Locker, name string, fn func(ctx context.Context) error) error {
	release, ok, err := locker.TryLock(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		telemetry.Warn("joblock.busy", map[string]any{"job": name})
		return ErrLocked
	}
	defer release()
	return fn(ctx)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]bool{}}
}

// TryLock implements Locker.
func (m *MemoryLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] {
		return nil, false, nil
	}
	m.held[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, name)
			m.mu.Unlock()
		})
	}, true, nil
}

var _ Locker = (*MemoryLocker)(nil)
