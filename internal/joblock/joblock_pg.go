package joblock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"esign-backend/internal/shared/telemetry"
)

// PGLocker uses session-level Postgres advisory locks, so runs on different hosts do not overlap.
type PGLocker struct {
	DB *sql.DB
}

// TryLock implements Locker. The lock lives on a pinned connection until release.
func (p *PGLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	conn, err := p.DB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("joblock conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("joblock try lock: %w", err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, name); err != nil {
				telemetry.Error("joblock.unlock_failed", map[string]any{"job": name, "error": err.Error()})
			}
			conn.Close()
		})
	}, true, nil
}

var _ Locker = (*PGLocker)(nil)
