// Package projlock serializes clustering and ingestion per project with
// PostgreSQL session-level advisory locks. The lock lives on a dedicated
// connection pinned for the whole job, so it survives the commits inside the
// critical section and is released automatically if the connection drops.
package projlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrProjectLocked reports that another clustering or ingestion job holds the
// project. Callers should surface it as a retryable conflict, not a failure.
var ErrProjectLocked = errors.New("project is locked by another job")

type Gate struct {
	db *sql.DB
}

func NewGate(db *sql.DB) *Gate {
	return &Gate{db: db}
}

// Lease holds an acquired project lock until Release is called.
type Lease struct {
	conn *sql.Conn
	key  int64
}

// LockKey derives the stable advisory-lock key for a project identifier.
// FNV-1a of the UUID string, masked to 63 bits so it is always a positive
// bigint.
func LockKey(projectUUID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(projectUUID))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// Acquire attempts a non-blocking session lock for the project. It returns
// ErrProjectLocked immediately when another session holds it; there is no
// queueing.
func (g *Gate) Acquire(ctx context.Context, projectUUID string) (*Lease, error) {
	if g == nil || g.db == nil {
		return nil, fmt.Errorf("project gate is not initialized")
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin lock connection: %w", err)
	}

	key := LockKey(projectUUID)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, ErrProjectLocked
	}

	return &Lease{conn: conn, key: key}, nil
}

// Release unlocks and returns the pinned connection to the pool. Safe to call
// once on every exit path; errors are returned for logging but the connection
// is closed regardless, which also drops the session lock.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}

	_, unlockErr := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	closeErr := l.conn.Close()
	l.conn = nil

	if unlockErr != nil {
		return fmt.Errorf("advisory unlock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock connection: %w", closeErr)
	}
	return nil
}
